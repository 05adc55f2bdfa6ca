// Package demo holds the schemas and handlers served by courierd and
// called by courierctl.
package demo

import (
	"context"
	"errors"
	"strings"

	"ipc-courier/message"
)

// PongValue is what the Ping handler answers with.
const PongValue = 7

type Ping struct{}

func (*Ping) MessageName() string { return "courier.demo.Ping" }

type Pong struct {
	Value int `json:"value"`
}

func (*Pong) MessageName() string { return "courier.demo.Pong" }

type EchoRequest struct {
	Text  string `json:"text"`
	Upper bool   `json:"upper,omitempty"`
}

func (*EchoRequest) MessageName() string { return "courier.demo.EchoRequest" }

type EchoResponse struct {
	Text string `json:"text"`
}

func (*EchoResponse) MessageName() string { return "courier.demo.EchoResponse" }

func init() {
	message.MustRegister(func() message.Message { return new(Ping) })
	message.MustRegister(func() message.Message { return new(Pong) })
	message.MustRegister(func() message.Message { return new(EchoRequest) })
	message.MustRegister(func() message.Message { return new(EchoResponse) })
}

// HandlePing answers every ping with PongValue.
func HandlePing(_ context.Context, _ *Ping) (*Pong, error) {
	return &Pong{Value: PongValue}, nil
}

var errEmptyEcho = errors.New("demo: nothing to echo")

// HandleEcho returns the request text, upper-cased when asked. An empty
// text is a handler error.
func HandleEcho(_ context.Context, req *EchoRequest) (*EchoResponse, error) {
	if req.Text == "" {
		return nil, errEmptyEcho
	}
	if req.Upper {
		return &EchoResponse{Text: strings.ToUpper(req.Text)}, nil
	}
	return &EchoResponse{Text: req.Text}, nil
}
