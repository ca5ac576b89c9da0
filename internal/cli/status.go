package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/tanya/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine status",
	Long:  `Check whether the engine is serving by probing its health endpoint.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	url := fmt.Sprintf("http://%s:%d/healthz", host, cfg.Server.Port)

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Println("Status: stopped")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Status: unhealthy (HTTP %d)\n", resp.StatusCode)
		return nil
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		fmt.Println("Status: unhealthy (bad health response)")
		return nil
	}

	fmt.Println("Status: running")
	fmt.Printf("Endpoint: http://%s:%d\n", host, cfg.Server.Port)
	return nil
}
