// Package telegram is a thin Bot API adapter for the primary chat channel.
// It covers only what delivery needs: plain text, in-place edits, deletes and
// document uploads. Command parsing and keyboards live with the caller.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/animecourier/anime-courier/internal/delivery"
	"github.com/animecourier/anime-courier/internal/httpclient"
)

const defaultBaseURL = "https://api.telegram.org"

// Bot talks to the Telegram Bot API. The zero value is unusable: Token is
// required.
type Bot struct {
	Token   string
	BaseURL string       // "" = api.telegram.org
	HTTP    *http.Client // "" = shared default client
}

var _ delivery.Notifier = (*Bot)(nil)

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type message struct {
	MessageID int64 `json:"message_id"`
}

func (b *Bot) client() *http.Client {
	if b.HTTP != nil {
		return b.HTTP
	}
	return httpclient.Default()
}

func (b *Bot) methodURL(method string) string {
	base := b.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return strings.TrimSuffix(base, "/") + "/bot" + b.Token + "/" + method
}

// SendText sends a plain text message and returns its id for later edits.
func (b *Bot) SendText(ctx context.Context, convID int64, text string) (delivery.MessageID, error) {
	form := url.Values{
		"chat_id": {strconv.FormatInt(convID, 10)},
		"text":    {text},
	}
	raw, err := b.call(ctx, "sendMessage", form)
	if err != nil {
		return 0, err
	}
	var m message
	if err := json.Unmarshal(raw, &m); err != nil {
		return 0, fmt.Errorf("telegram: sendMessage result: %w", err)
	}
	return delivery.MessageID(m.MessageID), nil
}

// EditText replaces the text of a previously sent message. Editing a message
// to its current text is reported as an error by the API but is not one for
// our purposes.
func (b *Bot) EditText(ctx context.Context, convID int64, id delivery.MessageID, text string) error {
	form := url.Values{
		"chat_id":    {strconv.FormatInt(convID, 10)},
		"message_id": {strconv.FormatInt(int64(id), 10)},
		"text":       {text},
	}
	_, err := b.call(ctx, "editMessageText", form)
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		return nil
	}
	return err
}

func (b *Bot) DeleteMessage(ctx context.Context, convID int64, id delivery.MessageID) error {
	form := url.Values{
		"chat_id":    {strconv.FormatInt(convID, 10)},
		"message_id": {strconv.FormatInt(int64(id), 10)},
	}
	_, err := b.call(ctx, "deleteMessage", form)
	return err
}

// SendDocument uploads localPath as a document via multipart form data.
func (b *Bot) SendDocument(ctx context.Context, convID int64, localPath, filename, caption string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("telegram: sendDocument: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeDocumentForm(mw, f, convID, filename, caption)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.methodURL("sendDocument"), pr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := b.client().Do(req)
	if err != nil {
		return fmt.Errorf("telegram: sendDocument: %w", err)
	}
	defer resp.Body.Close()
	_, err = decodeResponse(resp)
	return err
}

func writeDocumentForm(mw *multipart.Writer, f *os.File, convID int64, filename, caption string) error {
	if err := mw.WriteField("chat_id", strconv.FormatInt(convID, 10)); err != nil {
		return err
	}
	if caption != "" {
		if err := mw.WriteField("caption", caption); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("document", filename)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

// call posts a urlencoded form to a Bot API method and returns the raw result.
func (b *Bot) call(ctx context.Context, method string, form url.Values) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.methodURL(method), bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := b.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp)
}

func decodeResponse(resp *http.Response) (json.RawMessage, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("telegram: read response: %w", err)
	}
	var api apiResponse
	if err := json.Unmarshal(body, &api); err != nil {
		return nil, fmt.Errorf("telegram: status %d: %w", resp.StatusCode, err)
	}
	if !api.OK {
		return nil, fmt.Errorf("telegram: api error: %s", api.Description)
	}
	return api.Result, nil
}
