package advisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatServer returns an OpenAI-compatible endpoint that always replies with
// the given message content.
func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := map[string]any{
			"id":      "cmpl-test",
			"object":  "chat.completion",
			"model":   "test-model",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"}},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func testRequest() Request {
	return Request{
		FailingCommand: `page.click("#login")`,
		UserIntent:     "Click the login button",
		DOMSnapshot:    `<button data-testid="login">Log in</button>`,
		ErrorText:      "TimeoutError",
	}
}

func TestOpenAI_Propose_When_FencedReply_ReturnsCleanFix(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, "```python\npage.get_by_test_id(\"login\").click()\n```")
	defer srv.Close()

	adv := NewOpenAI("test-key", WithBaseURL("test-key", srv.URL+"/v1"), WithModel("test-model"))

	fix, err := adv.Propose(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, `page.get_by_test_id("login").click()`, fix)
}

func TestOpenAI_Propose_When_BlankReply_ReturnsErrNoFix(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, "   ")
	defer srv.Close()

	adv := NewOpenAI("test-key", WithBaseURL("test-key", srv.URL+"/v1"))

	_, err := adv.Propose(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrNoFix)
}

func TestOpenAI_Propose_When_ReplyEchoesFailingCommand_ReturnsErrNoFix(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, `page.click("#login")`)
	defer srv.Close()

	adv := NewOpenAI("test-key", WithBaseURL("test-key", srv.URL+"/v1"))

	_, err := adv.Propose(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrNoFix)
}

func TestOpenAI_Propose_When_ReplyIsProse_ReturnsErrNoFix(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, "I cannot determine the correct locator.")
	defer srv.Close()

	adv := NewOpenAI("test-key", WithBaseURL("test-key", srv.URL+"/v1"))

	_, err := adv.Propose(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrNoFix)
}

func TestOpenAI_Propose_When_ServerUnreachable_ReturnsErrNoFix(t *testing.T) {
	t.Parallel()

	adv := NewOpenAI("test-key", WithBaseURL("test-key", "http://127.0.0.1:1/v1"))

	_, err := adv.Propose(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrNoFix)
}
