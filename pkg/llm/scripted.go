package llm

import (
	"context"
	"sync"

	"github.com/harun/tanya/pkg/errorx"
)

// ScriptedProvider replays a fixed sequence of responses. Test double for
// the agent executor and runtime.
type ScriptedProvider struct {
	mu        sync.Mutex
	responses []*Response
	errs      []error
	Requests  []Request
}

// NewScriptedProvider creates a provider that replays steps in order. A step
// with a non-nil error is returned as a failure.
func NewScriptedProvider() *ScriptedProvider {
	return &ScriptedProvider{}
}

// Name returns the provider name.
func (p *ScriptedProvider) Name() string {
	return "scripted"
}

// Reply enqueues a successful response.
func (p *ScriptedProvider) Reply(response *Response) *ScriptedProvider {
	p.mu.Lock()
	p.responses = append(p.responses, response)
	p.errs = append(p.errs, nil)
	p.mu.Unlock()
	return p
}

// ReplyText enqueues a plain-text response.
func (p *ScriptedProvider) ReplyText(content string) *ScriptedProvider {
	return p.Reply(&Response{Content: content})
}

// ReplyToolCall enqueues a response requesting one tool call.
func (p *ScriptedProvider) ReplyToolCall(id, name string, args map[string]interface{}) *ScriptedProvider {
	return p.Reply(&Response{ToolCalls: []ToolCall{{ID: id, Name: name, Arguments: args}}})
}

// Fail enqueues an error step.
func (p *ScriptedProvider) Fail(err error) *ScriptedProvider {
	p.mu.Lock()
	p.responses = append(p.responses, nil)
	p.errs = append(p.errs, err)
	p.mu.Unlock()
	return p
}

// Chat replays the next scripted step and records the request.
func (p *ScriptedProvider) Chat(ctx context.Context, request Request) (*Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Requests = append(p.Requests, request)

	if len(p.responses) == 0 {
		return nil, errorx.New(errorx.CategoryLLM, "scripted provider exhausted", false, false)
	}

	response, err := p.responses[0], p.errs[0]
	p.responses = p.responses[1:]
	p.errs = p.errs[1:]

	if err != nil {
		return nil, err
	}
	return response, nil
}

// CallCount returns how many chat calls were made.
func (p *ScriptedProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}
