package telegram

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/harun/tagbot/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testToken = "123456:test-token"

type apiCall struct {
	Method   string
	Params   url.Values
	FileName string
	FileData []byte
}

// fakeAPI is a minimal Bot API server recording every call.
type fakeAPI struct {
	server *httptest.Server

	mu        sync.Mutex
	calls     []apiCall
	responses map[string]string
	files     map[string][]byte
	nextID    int
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{
		responses: make(map[string]string),
		files:     make(map[string][]byte),
		nextID:    100,
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	if path, ok := strings.CutPrefix(r.URL.Path, "/file/bot"+testToken+"/"); ok {
		f.mu.Lock()
		data, found := f.files[path]
		f.mu.Unlock()
		if !found {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
		return
	}

	method, ok := strings.CutPrefix(r.URL.Path, "/bot"+testToken+"/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	call := apiCall{Method: method}
	if err := r.ParseMultipartForm(32 << 20); err != nil && err != http.ErrNotMultipart {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	call.Params = r.Form
	if r.MultipartForm != nil {
		for _, headers := range r.MultipartForm.File {
			file, err := headers[0].Open()
			if err == nil {
				call.FileName = headers[0].Filename
				call.FileData, _ = io.ReadAll(file)
				file.Close()
			}
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	body, custom := f.responses[method]
	f.nextID++
	id := f.nextID
	f.mu.Unlock()

	if !custom {
		body = defaultResponse(method, id, r.Form.Get("chat_id"))
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func defaultResponse(method string, id int, chatID string) string {
	switch method {
	case "getMe":
		return `{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"Tag","username":"tagbot"}}`
	case "sendMessage", "sendDocument", "editMessageText":
		if chatID == "" {
			chatID = "0"
		}
		return fmt.Sprintf(`{"ok":true,"result":{"message_id":%d,"date":0,"chat":{"id":%s,"type":"private"}}}`, id, chatID)
	case "getUpdates":
		return `{"ok":true,"result":[]}`
	default:
		return `{"ok":true,"result":true}`
	}
}

func (f *fakeAPI) respond(method, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[method] = body
}

func (f *fakeAPI) serveFile(path string, data []byte, fileID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = data
	result, _ := json.Marshal(map[string]any{
		"ok": true,
		"result": map[string]any{
			"file_id":        fileID,
			"file_unique_id": "u-" + fileID,
			"file_size":      len(data),
			"file_path":      path,
		},
	})
	f.responses["getFile"] = string(result)
}

func (f *fakeAPI) callsTo(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeAPI) config() *config.TelegramConfig {
	return &config.TelegramConfig{
		BotToken:     testToken,
		APIEndpoint:  f.server.URL + "/bot%s/%s",
		FileEndpoint: f.server.URL + "/file/bot%s/%s",
	}
}

func newTestBot(t *testing.T) (*Bot, *fakeAPI) {
	t.Helper()
	api := newFakeAPI(t)
	cfg := api.config()

	client, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.BotToken, cfg.APIEndpoint)
	require.NoError(t, err)

	return NewWithAPI(client, cfg, zerolog.Nop(), nil), api
}
