package middleware

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ipc-courier/message"
)

type probe struct {
	Text string `json:"text"`
}

func (*probe) MessageName() string { return "middleware_test.Probe" }

// 直接把请求原样返回
func echoHandler(ctx context.Context, req message.Message) (message.Message, error) {
	return req, nil
}

// 睡 200ms 再返回
func slowHandler(ctx context.Context, req message.Message) (message.Message, error) {
	time.Sleep(200 * time.Millisecond)
	return req, nil
}

func failingHandler(ctx context.Context, req message.Message) (message.Message, error) {
	return nil, errors.New("boom")
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	handler := Logging(logger)(echoHandler)
	resp, err := handler(context.Background(), &probe{Text: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.(*probe).Text != "hi" {
		t.Fatalf("response changed: %+v", resp)
	}
	if !strings.Contains(buf.String(), `"request":"middleware_test.Probe"`) {
		t.Fatalf("request name not logged: %s", buf.String())
	}
}

func TestLoggingPassesErrors(t *testing.T) {
	var buf bytes.Buffer
	handler := Logging(zerolog.New(&buf))(failingHandler)

	_, err := handler(context.Background(), &probe{})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expect handler error, got %v", err)
	}
	if !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Fatalf("failure not logged at warn: %s", buf.String())
	}
}

func TestTimeoutPass(t *testing.T) {
	// 超时 500ms，handler 很快，应该正常返回
	handler := Timeout(500 * time.Millisecond)(echoHandler)

	if _, err := handler(context.Background(), &probe{}); err != nil {
		t.Fatalf("expect no error, got %v", err)
	}
}

func TestTimeoutExceeded(t *testing.T) {
	// 超时 50ms，handler 需要 200ms，应该超时
	handler := Timeout(50 * time.Millisecond)(slowHandler)

	_, err := handler(context.Background(), &probe{})
	if !errors.Is(err, ErrRequestTimedOut) {
		t.Fatalf("expect timeout error, got %v", err)
	}
}

func TestRateLimit(t *testing.T) {
	// rate=1 per second, burst=2 → 前 2 个立刻放行，第 3 个被拒
	handler := RateLimit(1, 2)(echoHandler)

	for i := 0; i < 2; i++ {
		if _, err := handler(context.Background(), &probe{}); err != nil {
			t.Fatalf("request %d should pass, got error: %v", i, err)
		}
	}

	if _, err := handler(context.Background(), &probe{}); !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("request 3 should be rate limited, got: %v", err)
	}
}

func TestThrottleHonoursContext(t *testing.T) {
	handler := Throttle(0.001, 1)(echoHandler)

	if _, err := handler(context.Background(), &probe{}); err != nil {
		t.Fatalf("first request should pass, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := handler(ctx, &probe{}); err == nil {
		t.Fatal("expect the second request to fail waiting for a token")
	}
}

func TestChain(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req message.Message) (message.Message, error) {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}

	chained := Chain(mark("outer"), Logging(zerolog.Nop()), Timeout(500*time.Millisecond), mark("inner"))
	resp, err := chained(echoHandler)(context.Background(), &probe{Text: "x"})
	if err != nil {
		t.Fatalf("expect no error, got %v", err)
	}
	if resp == nil {
		t.Fatal("expect non-nil response")
	}
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Fatalf("unexpected order: %v", order)
	}
}
