package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/alfredjeanlab/portal/internal/client"
	"github.com/alfredjeanlab/portal/internal/model"
)

// doRequest sends a request to the handler and returns the recorder.
func doRequest(t *testing.T, h http.Handler, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) any {
	t.Helper()
	var v any
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func seeded(t *testing.T) (*PortalServer, http.Handler) {
	t.Helper()
	srv, _, h := newTestServer()
	if err := srv.Seed(context.Background()); err != nil {
		t.Fatal(err)
	}
	return srv, h
}

func TestHandleList_Envelopes(t *testing.T) {
	_, h := seeded(t)

	// Nested: {success, data: {feedbacks, pagination}}.
	body := decodeBody(t, doRequest(t, h, "GET", "/v1/feedback?page=1&limit=2", nil)).(map[string]any)
	data := body["data"].(map[string]any)
	if items := data["feedbacks"].([]any); len(items) != 2 {
		t.Errorf("feedback items = %d, want 2", len(items))
	}
	p := data["pagination"].(map[string]any)
	if p["currentPage"] != float64(1) || p["totalPages"] != float64(2) || p["totalRecords"] != float64(4) {
		t.Errorf("feedback pagination = %v", p)
	}

	// Flattened: {success, data: {data, currentPage, totalPages, total}}.
	body = decodeBody(t, doRequest(t, h, "GET", "/v1/contacts", nil)).(map[string]any)
	data = body["data"].(map[string]any)
	if items := data["data"].([]any); len(items) != 3 {
		t.Errorf("contact items = %d, want 3", len(items))
	}
	if data["total"] != float64(3) || data["currentPage"] != float64(1) {
		t.Errorf("contacts envelope = %v", data)
	}

	// Bare array.
	arr, ok := decodeBody(t, doRequest(t, h, "GET", "/v1/support-tickets?limit=3", nil)).([]any)
	if !ok || len(arr) != 3 {
		t.Errorf("tickets body = %v, want a 3-element array", arr)
	}
}

func TestHandleList_FiltersAndSort(t *testing.T) {
	_, h := seeded(t)

	rec := doRequest(t, h, "GET", "/v1/support-tickets?status=open&sortBy=priority&sortOrder=desc", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var tickets []model.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &tickets); err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, tk := range tickets {
		if tk["status"] != "open" {
			t.Errorf("ticket %v does not match status=open", tk)
		}
		got = append(got, tk.String("priority"))
	}
	if want := []string{"medium", "high"}; !slices.Equal(got, want) {
		t.Errorf("priorities = %v, want %v", got, want)
	}

	rec = doRequest(t, h, "GET", "/v1/documents?search=LEGAL", nil)
	body := decodeBody(t, rec).(map[string]any)
	if docs := body["data"].(map[string]any)["documents"].([]any); len(docs) != 2 {
		t.Errorf("search=LEGAL matched %d documents, want 2", len(docs))
	}
}

func TestHandleList_BadPage(t *testing.T) {
	_, h := seeded(t)
	for _, q := range []string{"page=0", "page=abc", "limit=-1"} {
		if rec := doRequest(t, h, "GET", "/v1/feedback?"+q, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
		}
	}
}

func TestHandleCreate_ValidationErrors(t *testing.T) {
	_, h := seeded(t)
	rec := doRequest(t, h, "POST", "/v1/feedback", map[string]any{"name": "", "email": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeBody(t, rec).(map[string]any)
	if body["success"] != false || body["error"] != "Validation failed" {
		t.Errorf("body = %v", body)
	}
	errs := body["errors"].([]any)
	fields := map[string]bool{}
	for _, e := range errs {
		fields[e.(map[string]any)["field"].(string)] = true
	}
	for _, f := range []string{"name", "email", "message"} {
		if !fields[f] {
			t.Errorf("no error for %s in %v", f, errs)
		}
	}
}

func TestHandleCreate_InvalidJSON(t *testing.T) {
	_, h := seeded(t)
	req := httptest.NewRequest("POST", "/v1/feedback", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleGet_NotFound(t *testing.T) {
	_, h := seeded(t)
	rec := doRequest(t, h, "GET", "/v1/documents/doc-missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if body := decodeBody(t, rec).(map[string]any); body["error"] != "document not found" {
		t.Errorf("body = %v", body)
	}
}

func TestHandleDelete_Confirmations(t *testing.T) {
	srv, h := seeded(t)
	ctx := context.Background()

	tickets, _, _ := srv.listRecords(ctx, &model.Tickets, storeQuery(10))
	rec := doRequest(t, h, "DELETE", "/v1/support-tickets/"+tickets[0].ID("support_ticket_id"), nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("ticket delete status = %d, want 204", rec.Code)
	}

	contacts, _, _ := srv.listRecords(ctx, &model.Contacts, storeQuery(10))
	rec = doRequest(t, h, "DELETE", "/v1/contacts/"+contacts[0].ID("id"), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("contact delete status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec).(map[string]any); body["success"] != true {
		t.Errorf("contact delete body = %v", body)
	}
}

func TestHandle_RoleForbidden(t *testing.T) {
	_, h := seeded(t)
	rec := doRequest(t, h, "GET", "/v1/contacts", nil, headerRole, "student")
	if rec.Code != http.StatusForbidden {
		t.Errorf("student on contacts: status = %d, want 403", rec.Code)
	}
	rec = doRequest(t, h, "GET", "/v1/documents", nil, headerRole, "student")
	if rec.Code != http.StatusOK {
		t.Errorf("student on documents: status = %d, want 200", rec.Code)
	}
}

func TestHandler_AuthToken(t *testing.T) {
	srv, _, _ := newTestServer()
	h := srv.NewHTTPHandler("secret")

	if rec := doRequest(t, h, "GET", "/v1/feedback", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}
	if rec := doRequest(t, h, "GET", "/v1/feedback", nil, "Authorization", "Bearer secret"); rec.Code != http.StatusOK {
		t.Errorf("with token: status = %d, want 200", rec.Code)
	}
	if rec := doRequest(t, h, "GET", "/v1/health", nil); rec.Code != http.StatusOK {
		t.Errorf("health: status = %d, want 200", rec.Code)
	}
}

// TestHTTPClient_EndToEnd drives every endpoint through the real client so
// envelope normalization is checked against each collection's shape.
func TestHTTPClient_EndToEnd(t *testing.T) {
	_, h := seeded(t)
	ts := httptest.NewServer(h)
	defer ts.Close()

	c := client.NewHTTPClient(ts.URL, client.Session{User: "alice", Role: model.RoleAdmin})
	ctx := context.Background()

	if st, err := c.Health(ctx); err != nil || st != "ok" {
		t.Fatalf("Health = %q, %v", st, err)
	}

	for _, res := range model.Resources() {
		t.Run(res.Name, func(t *testing.T) {
			resp, err := c.List(ctx, res, &client.ListRequest{Criteria: model.NewFilterCriteria(2)})
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			n := len(sampleRecords[res.Name])
			if len(resp.Items) != 2 {
				t.Errorf("List returned %d items, want 2", len(resp.Items))
			}
			if resp.Pagination.CurrentPage != 1 || !resp.Pagination.HasNext() {
				t.Errorf("pagination = %+v", resp.Pagination)
			}
			if res.Envelope != model.EnvelopeArray && resp.Pagination.TotalRecords != n {
				t.Errorf("total = %d, want %d", resp.Pagination.TotalRecords, n)
			}

			id := resp.Items[0].ID(res.IDField)
			rec, err := c.Get(ctx, res, id)
			if err != nil || rec.ID(res.IDField) != id {
				t.Fatalf("Get(%s) = %v, %v", id, rec, err)
			}

			status := res.Statuses[len(res.Statuses)-1]
			notes := ""
			if res.Name == model.Tickets.Name {
				notes = "done"
			}
			updated, err := c.UpdateStatus(ctx, res, id, status, notes)
			if err != nil {
				t.Fatalf("UpdateStatus: %v", err)
			}
			if updated["status"] != status {
				t.Errorf("status = %v, want %s", updated["status"], status)
			}

			st, err := c.Stats(ctx, res)
			if err != nil {
				t.Fatalf("Stats: %v", err)
			}
			if st.Total != n || st.ByStatus[status] < 1 {
				t.Errorf("stats = %+v", st)
			}

			if err := c.Delete(ctx, res, id); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := c.Get(ctx, res, id); !client.IsNotFound(err) {
				t.Errorf("Get after delete: %v", err)
			}
		})
	}

	created, err := c.Create(ctx, &model.Contacts, map[string]any{
		"name": "Edsger", "email": "edsger@example.com", "subject": "Hello", "message": "Structured greetings.",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(created.ID("id"), "ct-") {
		t.Errorf("created = %v", created)
	}

	_, err = c.Update(ctx, &model.Contacts, created.ID("id"), map[string]any{"email": "nope"})
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest || len(apiErr.Fields) == 0 {
		t.Fatalf("invalid update error = %v", err)
	}
	if apiErr.Fields[0].Field != "email" {
		t.Errorf("field errors = %+v", apiErr.Fields)
	}
}

func TestHandlePresence(t *testing.T) {
	_, h := seeded(t)

	doRequest(t, h, "GET", "/v1/support-tickets", nil, headerUser, "alice", headerRole, "admin")
	doRequest(t, h, "GET", "/v1/documents/stats", nil, headerUser, "bob", headerRole, "student")
	doRequest(t, h, "GET", "/v1/contacts", nil, headerUser, "carol", headerRole, "student") // forbidden
	doRequest(t, h, "GET", "/v1/feedback", nil)                                            // anonymous

	users := func(path string) []string {
		t.Helper()
		rec := doRequest(t, h, "GET", path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d: %s", path, rec.Code, rec.Body.String())
		}
		data := decodeBody(t, rec).(map[string]any)["data"].(map[string]any)
		var names []string
		for _, u := range data["users"].([]any) {
			e := u.(map[string]any)
			names = append(names, e["user"].(string)+"@"+e["resource"].(string)+"/"+e["last_action"].(string))
		}
		slices.Sort(names)
		return names
	}

	if got, want := users("/v1/presence"), []string{"alice@tickets/list", "bob@documents/stats"}; !slices.Equal(got, want) {
		t.Errorf("roster = %v, want %v", got, want)
	}
	if got, want := users("/v1/presence?resource=documents"), []string{"bob@documents/stats"}; !slices.Equal(got, want) {
		t.Errorf("documents roster = %v, want %v", got, want)
	}

	if rec := doRequest(t, h, "GET", "/v1/presence?resource=courses", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown resource: status = %d, want 400", rec.Code)
	}
	if rec := doRequest(t, h, "GET", "/v1/presence?stale=soon", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad stale: status = %d, want 400", rec.Code)
	}
}
