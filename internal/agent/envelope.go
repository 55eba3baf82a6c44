package agent

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Invocation is the agent platform's action-group request.
type Invocation struct {
	MessageVersion    string            `json:"messageVersion"`
	ActionGroup       string            `json:"actionGroup"`
	Function          string            `json:"function"`
	Parameters        []Parameter       `json:"parameters"`
	SessionAttributes map[string]string `json:"sessionAttributes,omitempty"`
}

// Parameter is one named argument. Values are always strings.
type Parameter struct {
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Value string `json:"value"`
}

// InvocationResponse wraps a function result the way the platform expects:
// the JSON response is carried as a text body.
type InvocationResponse struct {
	MessageVersion string         `json:"messageVersion"`
	Response       ActionResponse `json:"response"`
}

// ActionResponse names the action group and function being answered.
type ActionResponse struct {
	ActionGroup      string           `json:"actionGroup"`
	Function         string           `json:"function"`
	FunctionResponse FunctionResponse `json:"functionResponse"`
}

// FunctionResponse holds the response body.
type FunctionResponse struct {
	ResponseBody map[string]TextBody `json:"responseBody"`
}

// TextBody is a serialized payload.
type TextBody struct {
	Body string `json:"body"`
}

// Params collects the invocation's parameters into a bag. Later duplicates
// win.
func (inv *Invocation) Params() Params {
	p := make(Params, len(inv.Parameters))
	for _, param := range inv.Parameters {
		p[param.Name] = param.Value
	}
	return p
}

// Invoke answers a platform invocation. The error is non-nil only when the
// response cannot be encoded.
func (d *Dispatcher) Invoke(ctx context.Context, inv *Invocation) (*InvocationResponse, error) {
	resp := d.Call(ctx, inv.Function, inv.Params())

	body, err := json.Marshal(resp)
	if err != nil {
		return nil, eris.Wrapf(err, "agent: encode %s response", inv.Function)
	}

	version := inv.MessageVersion
	if version == "" {
		version = "1.0"
	}
	return &InvocationResponse{
		MessageVersion: version,
		Response: ActionResponse{
			ActionGroup: inv.ActionGroup,
			Function:    inv.Function,
			FunctionResponse: FunctionResponse{
				ResponseBody: map[string]TextBody{"TEXT": {Body: string(body)}},
			},
		},
	}, nil
}
