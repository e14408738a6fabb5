package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdt-io/bdt/internal/workflow"
	"github.com/bdt-io/bdt/sdk/go/auth"
	"github.com/bdt-io/bdt/sdk/go/errors"
	"github.com/bdt-io/bdt/sdk/go/types"
)

func writeEnvelope(w http.ResponseWriter, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	status := "success"
	if code >= 400 {
		status = "error"
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": status, "message": message, "data": data})
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(&Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
}

func techUser() *types.SessionUser {
	return &types.SessionUser{ID: 7, Username: "bruno", Permissions: []string{"InformatiqueTicket"}}
}

func TestDecodeEnvelope(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tickets/42", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeEnvelope(w, 200, "", map[string]interface{}{
			"ticket":  map[string]interface{}{"id": 42, "status": "Ouvert", "location": "B12"},
			"history": []interface{}{},
		})
	})
	mux.HandleFunc("/api/tickets/404", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 404, "Bon de travail introuvable", nil)
	})
	mux.HandleFunc("/api/tickets/500", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	})
	c := newTestClient(t, mux)
	c.SetToken("tok")
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		d, err := c.Tickets.Get(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, int64(42), d.Ticket.ID)
		assert.Equal(t, "B12", d.Ticket.Location)
	})

	t.Run("api error", func(t *testing.T) {
		_, err := c.Tickets.Get(ctx, 404)
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
		var apiErr *errors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "Bon de travail introuvable", apiErr.Message)
	})

	t.Run("non json error", func(t *testing.T) {
		_, err := c.Tickets.Get(ctx, 500)
		var apiErr *errors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	})

	t.Run("network error", func(t *testing.T) {
		dead := NewClient(&Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
		_, err := dead.Tickets.Get(ctx, 1)
		assert.True(t, errors.IsNetwork(err))
	})
}

func TestListPagination(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"success","data":[{"id":1,"status":"Ouvert"}],"pagination":{"total":11,"totalPages":2,"page":2,"limit":10}}`)
	}))

	page, err := c.Tickets.Manage(context.Background(), &types.TicketListOptions{
		ListOptions:          types.ListOptions{Page: 2, Limit: 10, Search: " prise "},
		Status:               "Ouvert",
		ServiceIntervenantID: 3,
	})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, int64(11), page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	assert.Contains(t, gotQuery, "search=prise")
	assert.Contains(t, gotQuery, "serviceIntervenantId=3")
	assert.Contains(t, gotQuery, "status=Ouvert")
	assert.NotContains(t, gotQuery, "categoryId")
}

func TestSession(t *testing.T) {
	var verifyCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret1" {
			writeEnvelope(w, 401, "Identifiants invalides", nil)
			return
		}
		writeEnvelope(w, 200, "Connexion réussie", map[string]interface{}{"token": "tok-tech", "user": techUser()})
	})
	mux.HandleFunc("/api/user/verify", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&verifyCalls, 1)
		if r.Header.Get("Authorization") != "Bearer tok-tech" {
			writeEnvelope(w, 401, "Session expirée", nil)
			return
		}
		writeEnvelope(w, 200, "", techUser())
	})
	ctx := context.Background()

	t.Run("init without token stays logged out", func(t *testing.T) {
		s := NewSession(newTestClient(t, mux), auth.NewMemoryStore())
		require.NoError(t, s.Init(ctx))
		assert.False(t, s.LoggedIn())
		assert.Equal(t, LoginRoute, s.Guard("/tickets"))
	})

	t.Run("init with valid token", func(t *testing.T) {
		store := auth.NewMemoryStore()
		require.NoError(t, store.Save("tok-tech"))
		s := NewSession(newTestClient(t, mux), store)
		require.NoError(t, s.Init(ctx))
		require.True(t, s.LoggedIn())
		assert.Equal(t, "bruno", s.User().Username)
		assert.True(t, s.CanManageTickets())
	})

	t.Run("expired token is cleared", func(t *testing.T) {
		store := auth.NewMemoryStore()
		require.NoError(t, store.Save("stale"))
		c := newTestClient(t, mux)
		s := NewSession(c, store)
		err := s.Init(ctx)
		assert.ErrorIs(t, err, errors.ErrSessionExpired)
		assert.False(t, s.LoggedIn())
		token, _ := store.Load()
		assert.Empty(t, token)
		assert.Empty(t, c.Token())
	})

	t.Run("network failure keeps token", func(t *testing.T) {
		store := auth.NewMemoryStore()
		require.NoError(t, store.Save("tok-tech"))
		s := NewSession(NewClient(&Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}), store)
		err := s.Init(ctx)
		assert.True(t, errors.IsNetwork(err))
		assert.False(t, s.LoggedIn())
		token, _ := store.Load()
		assert.Equal(t, "tok-tech", token)
	})

	t.Run("login and logout", func(t *testing.T) {
		store := auth.NewMemoryStore()
		c := newTestClient(t, mux)
		s := NewSession(c, store)

		_, err := s.Login(ctx, "bruno", "wrong")
		assert.True(t, errors.IsUnauthorized(err))
		assert.False(t, s.LoggedIn())

		u, err := s.Login(ctx, "bruno", "secret1")
		require.NoError(t, err)
		assert.Equal(t, int64(7), u.ID)
		assert.Equal(t, "tok-tech", c.Token())
		token, _ := store.Load()
		assert.Equal(t, "tok-tech", token)

		require.NoError(t, s.Logout())
		assert.False(t, s.LoggedIn())
		assert.Empty(t, c.Token())
	})

	t.Run("blank credentials are not sent", func(t *testing.T) {
		before := atomic.LoadInt32(&verifyCalls)
		s := NewSession(newTestClient(t, mux), nil)
		_, err := s.Login(ctx, " ", "")
		var vErr *errors.ValidationError
		assert.ErrorAs(t, err, &vErr)
		assert.Equal(t, before, atomic.LoadInt32(&verifyCalls))
	})
}

func TestGuard(t *testing.T) {
	tests := []struct {
		name  string
		perms []string
		path  string
		want  string
	}{
		{"home", nil, "/", ""},
		{"admin denied", []string{"InformatiqueTicket"}, "/admin/users", HomeRoute},
		{"admin allowed", []string{"AdminAccess"}, "/admin", ""},
		{"admin prefix only", nil, "/administration", ""},
		{"manage denied", []string{"StatistiquesAccess"}, "/tickets/manage", HomeRoute},
		{"manage allowed", []string{"ÉlectricitéTicket"}, "/tickets/manage/12", ""},
		{"dashboard denied", nil, "/dashboard", HomeRoute},
		{"own tickets", nil, "/tickets/12", ""},
		{"statistics denied", []string{"InformatiqueTicket"}, "/statistics", HomeRoute},
		{"statistics allowed", []string{"StatistiquesAccess"}, "/statistics", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(NewClient(&Config{BaseURL: "http://unused"}), nil)
			s.setUser(&types.SessionUser{ID: 1, Permissions: tt.perms})
			assert.Equal(t, tt.want, s.Guard(tt.path))
		})
	}
}

func TestStatusForm(t *testing.T) {
	var requests int32
	var got types.StatusUpdateRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		assert.Equal(t, "updateStatus", r.URL.Query().Get("action"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeEnvelope(w, 200, "Statut mis à jour", map[string]interface{}{
			"ticket":  map[string]interface{}{"id": 5, "status": got.NewStatus, "service_intervenant_name": "Informatique"},
			"history": []interface{}{},
		})
	}))
	session := NewSession(c, nil)
	session.setUser(techUser())
	ticket := &types.Ticket{ID: 5, Status: "Ouvert", ServiceIntervenantID: 2, ServiceIntervenantName: "Informatique"}
	ctx := context.Background()

	form := NewStatusForm(c, session, ticket)
	assert.Equal(t, []string{"En cours", "Fermé"}, form.Options())
	assert.False(t, form.CanSubmit())

	form.NewStatus = "En cours"
	assert.False(t, form.CanSubmit(), "intervenant required")
	_, err := form.Submit(ctx)
	assert.Equal(t, workflow.KindMissingIntervenant, workflow.KindOf(err))
	assert.Zero(t, atomic.LoadInt32(&requests))

	form.NewStatus = "Résolu"
	assert.False(t, form.CanSubmit())
	_, err = form.Submit(ctx)
	assert.Equal(t, workflow.KindIllegal, workflow.KindOf(err))

	future := time.Now().Add(48 * time.Hour)
	form.NewStatus = "Fermé"
	form.StatusDate = &future
	_, err = form.Submit(ctx)
	assert.Equal(t, workflow.KindFutureDate, workflow.KindOf(err))
	assert.Zero(t, atomic.LoadInt32(&requests))

	id := int64(9)
	form.StatusDate = nil
	form.NewStatus = "En cours"
	form.IntervenantID = &id
	require.True(t, form.CanSubmit())
	res, err := form.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
	assert.Equal(t, "En cours", got.NewStatus)
	require.NotNil(t, got.CustomIntervenantID)
	assert.Equal(t, int64(9), *got.CustomIntervenantID)
	assert.Equal(t, "En cours", res.Ticket.Status)
	assert.Equal(t, []string{"Résolu", "Fermé"}, form.Options())
	assert.Empty(t, form.NewStatus)
}

func TestStatusFormLockedUser(t *testing.T) {
	session := NewSession(NewClient(&Config{BaseURL: "http://unused"}), nil)
	u := techUser()
	u.IsLock = true
	session.setUser(u)
	form := NewStatusForm(session.client, session, &types.Ticket{ID: 1, Status: "Ouvert", ServiceIntervenantName: "Informatique"})
	form.NewStatus = "En cours"
	assert.True(t, form.CanSubmit())
}

func TestStatusFormForbidden(t *testing.T) {
	session := NewSession(NewClient(&Config{BaseURL: "http://unused"}), nil)
	session.setUser(techUser())
	form := NewStatusForm(session.client, session, &types.Ticket{ID: 1, Status: "Ouvert", ServiceIntervenantName: "Plomberie"})
	form.NewStatus = "Fermé"
	_, err := form.Submit(context.Background())
	assert.Equal(t, workflow.KindForbidden, workflow.KindOf(err))
}

func TestCategoryPicker(t *testing.T) {
	var created, assigned int32
	var lastCategory *int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ticket-categories", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			atomic.AddInt32(&created, 1)
			writeEnvelope(w, 201, "", map[string]interface{}{"id": 30, "name": "Réseau", "service_intervenant_id": 2})
			return
		}
		assert.Equal(t, "2", r.URL.Query().Get("serviceIntervenantId"))
		var items []map[string]interface{}
		if strings.EqualFold(r.URL.Query().Get("search"), "imprimante") {
			items = append(items, map[string]interface{}{"id": 10, "name": "Imprimante", "service_intervenant_id": 2})
		}
		writeEnvelope(w, 200, "", items)
	})
	mux.HandleFunc("/api/tickets/5", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&assigned, 1)
		var body map[string]*int64
		_ = json.NewDecoder(r.Body).Decode(&body)
		lastCategory = body["categoryId"]
		writeEnvelope(w, 200, "", map[string]interface{}{
			"id": 5, "status": "En cours", "service_intervenant_id": 2, "category_id": lastCategory,
		})
	})
	c := newTestClient(t, mux)
	p := NewCategoryPicker(c, &types.Ticket{ID: 5, Status: "En cours", ServiceIntervenantID: 2})
	ctx := context.Background()

	_, err := p.SelectOrCreate(ctx, "imprimante")
	require.NoError(t, err)
	require.NotNil(t, lastCategory)
	assert.Equal(t, int64(10), *lastCategory)
	assert.Zero(t, atomic.LoadInt32(&created))

	_, err = p.SelectOrCreate(ctx, "Réseau")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&created))
	assert.Equal(t, int64(30), *lastCategory)

	tk, err := p.Clear(ctx)
	require.NoError(t, err)
	assert.Nil(t, lastCategory)
	assert.Nil(t, tk.CategoryID)
	assert.Equal(t, int64(2), tk.ServiceIntervenantID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&assigned))
}

func TestCategoryPickerKeepsServiceScope(t *testing.T) {
	var createdFor int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ticket-categories", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var req types.CategoryRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			createdFor = req.ServiceIntervenantID
			writeEnvelope(w, 201, "", map[string]interface{}{"id": 31, "name": req.Name, "service_intervenant_id": req.ServiceIntervenantID})
			return
		}
		assert.Equal(t, "2", r.URL.Query().Get("serviceIntervenantId"))
		writeEnvelope(w, 200, "", []map[string]interface{}{})
	})
	mux.HandleFunc("/api/tickets/5", func(w http.ResponseWriter, r *http.Request) {
		// a reply without the service must not widen later searches
		writeEnvelope(w, 200, "", map[string]interface{}{"id": 5})
	})
	c := newTestClient(t, mux)
	p := NewCategoryPicker(c, &types.Ticket{ID: 5, ServiceIntervenantID: 2})
	ctx := context.Background()

	_, err := p.SelectOrCreate(ctx, "Wifi")
	require.NoError(t, err)
	_, err = p.SelectOrCreate(ctx, "Câblage")
	require.NoError(t, err)
	assert.Equal(t, int64(2), createdFor)
}

func TestCleanupForm(t *testing.T) {
	var deleted int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			count := 3
			if r.URL.Query().Get("period") == "5y" {
				count = 0
			}
			writeEnvelope(w, 200, "", map[string]interface{}{"period": r.URL.Query().Get("period"), "count": count})
		case http.MethodDelete:
			atomic.AddInt32(&deleted, 1)
			writeEnvelope(w, 200, "3 bons ont été supprimés.", map[string]interface{}{"period": "1y", "count": 3})
		}
	}))
	ctx := context.Background()

	f := NewCleanupForm(c, "1y")
	assert.False(t, f.Enabled())
	f.SetConfirmation("SUPPRIMER")
	assert.False(t, f.Enabled(), "count not loaded")

	n, err := f.LoadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.True(t, f.Enabled())

	f.SetConfirmation("supprimer")
	assert.False(t, f.Enabled())
	_, err = f.Confirm(ctx)
	assert.Equal(t, workflow.KindInvalidCleanup, workflow.KindOf(err))
	assert.Zero(t, atomic.LoadInt32(&deleted))

	f.SetConfirmation("SUPPRIMER")
	res, err := f.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, "3 bons ont été supprimés.", res.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&deleted))
	assert.False(t, f.Enabled())

	empty := NewCleanupForm(c, "5y")
	empty.SetConfirmation("SUPPRIMER")
	_, err = empty.LoadCount(ctx)
	require.NoError(t, err)
	assert.False(t, empty.Enabled())

	_, err = NewCleanupForm(c, "10y").LoadCount(ctx)
	assert.Equal(t, workflow.KindInvalidCleanup, workflow.KindOf(err))
}

func TestTransferMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "transferTicket", r.URL.Query().Get("action"))
		writeEnvelope(w, 200, "Le bon a été transféré vers le service Plomberie.", map[string]interface{}{
			"ticket": map[string]interface{}{"id": 5, "service_intervenant_id": 4},
		})
	}))
	res, err := c.Tickets.Transfer(context.Background(), 5, &types.TransferRequest{TargetServiceID: 4, Mode: "transfer_only"})
	require.NoError(t, err)
	assert.Equal(t, "Le bon a été transféré vers le service Plomberie.", res.Message)
	assert.Nil(t, res.Duplicate)
}

func TestImagesAndExport(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ticket-images", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "5", r.FormValue("ticketId"))
		assert.Empty(t, r.FormValue("messageId"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		writeEnvelope(w, 201, "", map[string]interface{}{"id": 11, "ticket_id": 5, "filename": hdr.Filename, "size": len(data)})
	})
	mux.HandleFunc("/api/ticketimage/serve", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "11" {
			writeEnvelope(w, 404, "Image introuvable", nil)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	})
	mux.HandleFunc("/api/statistics/export", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-01-01", r.URL.Query().Get("from"))
		w.Header().Set("Content-Disposition", `attachment; filename="statistiques_2026-01-01_2026-06-30.xlsx"`)
		_, _ = w.Write([]byte("xlsx"))
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	img, err := c.Images.Upload(ctx, 5, nil, "photo.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "photo.png", img.Filename)
	assert.Equal(t, int64(9), img.Size)

	data, ct, err := c.Images.Download(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, "png-bytes", string(data))

	_, _, err = c.Images.Download(ctx, 12)
	assert.True(t, errors.IsNotFound(err))

	xlsx, name, err := c.Statistics.Export(ctx, &types.StatisticsOptions{From: "2026-01-01", To: "2026-06-30"})
	require.NoError(t, err)
	assert.Equal(t, "xlsx", string(xlsx))
	assert.Equal(t, "statistiques_2026-01-01_2026-06-30.xlsx", name)
}

func TestSubscribe(t *testing.T) {
	upgrader := websocket.Upgrader{}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			writeEnvelope(w, 401, "Authentification requise", nil)
			return
		}
		assert.Equal(t, "/api/ws/ticket-messages/5", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		_ = conn.WriteJSON(map[string]interface{}{"type": "ping"})
		_ = conn.WriteJSON(map[string]interface{}{"type": "message", "data": map[string]interface{}{"id": 3, "ticket_id": 5, "message": "Bonjour"}})
		_, _, _ = conn.ReadMessage()
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := c.Messages.Subscribe(ctx, 5)
	assert.True(t, errors.IsUnauthorized(err))

	c.SetToken("tok")
	sub, err := c.Messages.Subscribe(ctx, 5)
	require.NoError(t, err)
	defer sub.Close()

	select {
	case msg := <-sub.C:
		require.NotNil(t, msg)
		assert.Equal(t, "Bonjour", msg.Body)
	case <-ctx.Done():
		t.Fatal("no message received")
	}

	require.NoError(t, sub.Close())
	for range sub.C {
	}
	assert.NoError(t, sub.Err())
}
