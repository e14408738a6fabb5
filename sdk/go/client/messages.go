package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/bdt-io/bdt/sdk/go/errors"
	"github.com/bdt-io/bdt/sdk/go/types"
)

// MessagesService reads and posts ticket chat messages.
type MessagesService struct {
	client *Client
}

// List returns the messages of a ticket, oldest first.
func (s *MessagesService) List(ctx context.Context, ticketID int64) ([]types.Message, error) {
	var msgs []types.Message
	_, err := s.client.get(ctx, fmt.Sprintf("/api/ticket-messages/%d", ticketID), nil, &msgs)
	return msgs, err
}

// Send posts a message; imageIDs attach previously uploaded images.
func (s *MessagesService) Send(ctx context.Context, ticketID int64, text string, imageIDs ...int64) (*types.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &errors.ValidationError{Field: "message", Message: "le message est vide"}
	}
	var msg types.Message
	req := &types.MessageRequest{TicketID: ticketID, Message: text, ImageIDs: imageIDs}
	if _, err := s.client.post(ctx, "/api/ticket-messages", req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Subscription delivers the messages created on a ticket while open.
type Subscription struct {
	// C is closed when the connection ends.
	C      <-chan *types.Message
	conn   *websocket.Conn
	once   sync.Once
	closed atomic.Bool
	err    error
	mu     sync.Mutex
}

// Close ends the subscription.
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		err = s.conn.Close()
	})
	return err
}

// Err returns the error that ended the subscription, if any.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (c *Client) websocketURL(path string) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

// Subscribe opens the live feed of a ticket. Cancelling ctx closes it.
func (s *MessagesService) Subscribe(ctx context.Context, ticketID int64) (*Subscription, error) {
	target, err := s.client.websocketURL(fmt.Sprintf("/api/ws/ticket-messages/%d", ticketID))
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if token := s.client.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			return nil, errorFromBody(resp.StatusCode, body)
		}
		return nil, &errors.NetworkError{Operation: "SUBSCRIBE", URL: target, Err: err}
	}

	ch := make(chan *types.Message, 16)
	done := make(chan struct{})
	sub := &Subscription{C: ch, conn: conn}
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-done:
		}
	}()
	go func() {
		defer close(ch)
		defer close(done)
		for {
			var ev types.MessageEvent
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil && !sub.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					sub.setErr(err)
				}
				return
			}
			if ev.Type != "message" || ev.Message == nil {
				continue
			}
			select {
			case ch <- ev.Message:
			case <-ctx.Done():
				return
			}
		}
	}()
	return sub, nil
}

// errorFromBody builds the APIError of a failed response that was not
// decoded through an envelope.
func errorFromBody(code int, body []byte) error {
	var env types.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return errors.NewAPIError(code, "")
	}
	return errors.NewAPIError(code, env.Message)
}

// ImagesService uploads and fetches ticket images.
type ImagesService struct {
	client *Client
}

// Upload stores an image on a ticket, optionally attached to a message.
func (s *ImagesService) Upload(ctx context.Context, ticketID int64, messageID *int64, filename string, r io.Reader) (*types.Image, error) {
	form := map[string]string{"ticketId": strconv.FormatInt(ticketID, 10)}
	if messageID != nil {
		form["messageId"] = strconv.FormatInt(*messageID, 10)
	}
	resp, err := s.client.httpClient.R().
		SetContext(ctx).
		SetFormData(form).
		SetFileReader("file", filename, r).
		Post("/api/ticket-images")
	if err != nil {
		return nil, &errors.NetworkError{Operation: "UPLOAD", URL: s.client.baseURL + "/api/ticket-images", Err: err}
	}
	var img types.Image
	if _, err := decodeEnvelope(resp, &img); err != nil {
		return nil, err
	}
	return &img, nil
}

// List returns the image metadata of a ticket.
func (s *ImagesService) List(ctx context.Context, ticketID int64) ([]types.Image, error) {
	var imgs []types.Image
	_, err := s.client.get(ctx, fmt.Sprintf("/api/ticket-images/%d", ticketID), nil, &imgs)
	return imgs, err
}

// Delete removes an image.
func (s *ImagesService) Delete(ctx context.Context, id int64) error {
	_, err := s.client.delete(ctx, fmt.Sprintf("/api/ticket-images/%d", id), nil)
	return err
}

// Download returns the bytes and content type of an image.
func (s *ImagesService) Download(ctx context.Context, id int64) ([]byte, string, error) {
	data, header, err := s.client.download(ctx, "/api/ticketimage/serve", url.Values{"id": {strconv.FormatInt(id, 10)}})
	if err != nil {
		return nil, "", err
	}
	return data, header.Get("Content-Type"), nil
}

// Export downloads the statistics workbook and returns its bytes and file
// name.
func (s *StatisticsService) Export(ctx context.Context, opts *types.StatisticsOptions) ([]byte, string, error) {
	data, header, err := s.client.download(ctx, "/api/statistics/export", statisticsValues(opts))
	if err != nil {
		return nil, "", err
	}
	name := "statistiques.xlsx"
	if _, params, err := mime.ParseMediaType(header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	return data, name, nil
}

// download fetches a raw, non-envelope body.
func (c *Client) download(ctx context.Context, path string, query url.Values) ([]byte, http.Header, error) {
	resp, err := c.httpClient.R().SetContext(ctx).SetQueryParamsFromValues(query).Get(path)
	if err != nil {
		return nil, nil, &errors.NetworkError{Operation: http.MethodGet, URL: c.baseURL + path, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, nil, errorFromBody(resp.StatusCode(), resp.Body())
	}
	return bytes.Clone(resp.Body()), resp.Header(), nil
}
