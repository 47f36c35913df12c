package syncer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docket/internal/api"
	"github.com/ternarybob/docket/internal/interfaces"
	"github.com/ternarybob/docket/internal/models"
	"github.com/ternarybob/docket/internal/services/events"
)

// gatewayStub is a mutable GET /documents backend for synchronizer tests
type gatewayStub struct {
	mu         sync.Mutex
	requests   int
	statusCode int
	docs       []map[string]interface{}
}

func newGatewayStub() *gatewayStub {
	return &gatewayStub{statusCode: http.StatusOK}
}

func (g *gatewayStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.requests++
		code := g.statusCode
		docs := g.docs
		g.mu.Unlock()

		if r.URL.Path != "/documents" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if code != http.StatusOK {
			w.WriteHeader(code)
			w.Write([]byte(`{"error":"storage offline"}`))
			return
		}
		if docs == nil {
			docs = []map[string]interface{}{}
		}
		json.NewEncoder(w).Encode(docs)
	}
}

func (g *gatewayStub) setDocs(docs []map[string]interface{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.docs = docs
}

func (g *gatewayStub) setStatusCode(code int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCode = code
}

func (g *gatewayStub) requestCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests
}

func stubDoc(id int, filename, status string) map[string]interface{} {
	return map[string]interface{}{
		"id":        id,
		"filename":  filename,
		"status":    status,
		"createdAt": "2025-03-01T10:00:00Z",
	}
}

func newTestSyncer(t *testing.T, baseURL string, pollInterval time.Duration) (interfaces.SyncService, interfaces.EventService) {
	t.Helper()
	logger := arbor.NewLogger()
	bus := events.NewService(logger)
	client := api.NewClient(api.WithBaseURL(baseURL), api.WithLogger(logger))
	return NewService(client, bus, pollInterval, logger), bus
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestRefresh_ReplacesCollectionWholesale(t *testing.T) {
	stub := newGatewayStub()
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	svc, _ := newTestSyncer(t, server.URL, time.Hour)

	stub.setDocs([]map[string]interface{}{
		stubDoc(3, "newest.pdf", "PENDING"),
		stubDoc(2, "middle.png", "PROCESSING"),
		stubDoc(1, "oldest.jpg", "COMPLETED"),
	})
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	docs := svc.Documents()
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(docs))
	}
	// Backend order (most-recent-first) is preserved verbatim
	if docs[0].ID != 3 || docs[1].ID != 2 || docs[2].ID != 1 {
		t.Errorf("backend order not preserved: %v", []int64{docs[0].ID, docs[1].ID, docs[2].ID})
	}

	// A document omitted from the next response disappears from the view
	stub.setDocs([]map[string]interface{}{
		stubDoc(3, "newest.pdf", "COMPLETED"),
		stubDoc(1, "oldest.jpg", "COMPLETED"),
	})
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}

	docs = svc.Documents()
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents after replacement, got %d", len(docs))
	}
	if _, found := svc.Document(2); found {
		t.Error("document 2 should be gone after wholesale replacement")
	}
	if doc, _ := svc.Document(3); doc.Status != models.StatusCompleted {
		t.Errorf("status transition not picked up: %s", doc.Status)
	}
}

func TestRefresh_Idempotent(t *testing.T) {
	stub := newGatewayStub()
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	svc, _ := newTestSyncer(t, server.URL, time.Hour)

	stub.setDocs([]map[string]interface{}{
		stubDoc(1, "a.pdf", "PENDING"),
		stubDoc(2, "b.png", "COMPLETED"),
	})

	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	first := svc.Documents()

	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}
	second := svc.Documents()

	if len(first) != len(second) {
		t.Fatalf("identical backend data changed the collection size: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].Status != second[i].Status {
			t.Errorf("document %d changed across identical refreshes: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestRefresh_FailureRetainsPriorCollection(t *testing.T) {
	stub := newGatewayStub()
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	svc, _ := newTestSyncer(t, server.URL, time.Hour)

	stub.setDocs([]map[string]interface{}{stubDoc(1, "kept.pdf", "PROCESSING")})
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("seed refresh failed: %v", err)
	}

	// Backend starts failing: error recorded, collection untouched
	stub.setStatusCode(http.StatusInternalServerError)
	if err := svc.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error for 500 response")
	}
	if svc.Err() == nil {
		t.Error("Err should report the failed refresh")
	}
	docs := svc.Documents()
	if len(docs) != 1 || docs[0].Filename != "kept.pdf" {
		t.Errorf("prior collection must survive a failed refresh: %+v", docs)
	}

	// Manual retry succeeds: error cleared, collection replaced
	stub.setStatusCode(http.StatusOK)
	stub.setDocs([]map[string]interface{}{
		stubDoc(2, "fresh.png", "PENDING"),
		stubDoc(1, "kept.pdf", "COMPLETED"),
	})
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("retry refresh failed: %v", err)
	}
	if svc.Err() != nil {
		t.Errorf("error state must clear after successful retry: %v", svc.Err())
	}
	if len(svc.Documents()) != 2 {
		t.Errorf("collection not replaced after retry: %+v", svc.Documents())
	}
}

func TestStart_PerformsSingleActivationRefresh(t *testing.T) {
	stub := newGatewayStub()
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	stub.setDocs([]map[string]interface{}{stubDoc(1, "a.pdf", "PENDING")})

	svc, _ := newTestSyncer(t, server.URL, time.Hour)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer svc.Stop()

	if got := stub.requestCount(); got != 1 {
		t.Errorf("expected exactly one activation refresh, got %d requests", got)
	}
	if len(svc.Documents()) != 1 {
		t.Errorf("activation refresh should populate the collection")
	}
	if svc.LastSync().IsZero() {
		t.Error("LastSync should be set after a successful refresh")
	}

	if err := svc.Start(context.Background()); err == nil {
		t.Error("second Start must be rejected")
	}
}

func TestPollLoop_MakesStatusChangesVisible(t *testing.T) {
	stub := newGatewayStub()
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	stub.setDocs([]map[string]interface{}{stubDoc(1, "scan.png", "PENDING")})

	svc, _ := newTestSyncer(t, server.URL, 25*time.Millisecond)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer svc.Stop()

	// Background processing advances server-side; no client action taken
	stub.setDocs([]map[string]interface{}{stubDoc(1, "scan.png", "COMPLETED")})

	waitFor(t, 5*time.Second, func() bool {
		doc, found := svc.Document(1)
		return found && doc.Status == models.StatusCompleted
	}, "poll loop never picked up the status transition")
}

func TestPollLoop_ContinuesAfterFailure(t *testing.T) {
	stub := newGatewayStub()
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	stub.setStatusCode(http.StatusInternalServerError)

	svc, _ := newTestSyncer(t, server.URL, 25*time.Millisecond)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer svc.Stop()

	waitFor(t, 5*time.Second, func() bool {
		return svc.Err() != nil
	}, "failed refresh never recorded an error")

	// Recovery without any manual retry: the timer keeps firing
	stub.setStatusCode(http.StatusOK)
	stub.setDocs([]map[string]interface{}{stubDoc(1, "late.pdf", "PENDING")})

	waitFor(t, 5*time.Second, func() bool {
		return svc.Err() == nil && len(svc.Documents()) == 1
	}, "poll loop did not recover after backend came back")
}

func TestEventTriggeredRefresh(t *testing.T) {
	stub := newGatewayStub()
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	svc, bus := newTestSyncer(t, server.URL, time.Hour)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer svc.Stop()

	baseline := stub.requestCount()

	stub.setDocs([]map[string]interface{}{stubDoc(9, "fresh.png", "PENDING")})
	bus.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventDocumentUploaded,
		Payload: int64(9),
	})

	waitFor(t, 5*time.Second, func() bool {
		return stub.requestCount() > baseline
	}, "upload event never triggered a refresh")

	waitFor(t, 5*time.Second, func() bool {
		_, found := svc.Document(9)
		return found
	}, "event-triggered refresh did not update the collection")

	// The external change signal drives the same refresh path
	baseline = stub.requestCount()
	stub.setDocs([]map[string]interface{}{stubDoc(9, "fresh.png", "COMPLETED")})
	bus.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventDocumentsChanged,
		Payload: "document_processed",
	})

	waitFor(t, 5*time.Second, func() bool {
		doc, found := svc.Document(9)
		return found && doc.Status == models.StatusCompleted
	}, "change event never triggered a refresh")
}

func TestStop_DiscardsLateResponse(t *testing.T) {
	release := make(chan struct{})
	firstRequest := true
	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		blocking := !firstRequest
		firstRequest = false
		mu.Unlock()

		// The activation refresh sees an empty collection; only the blocked
		// request carries the late document.
		if !blocking {
			json.NewEncoder(w).Encode([]map[string]interface{}{})
			return
		}
		<-release
		json.NewEncoder(w).Encode([]map[string]interface{}{
			stubDoc(99, "late.pdf", "COMPLETED"),
		})
	}))
	defer server.Close()

	svc, _ := newTestSyncer(t, server.URL, time.Hour)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Launch a manual refresh that will be in flight across Stop
	refreshDone := make(chan error, 1)
	go func() {
		refreshDone <- svc.Refresh(context.Background())
	}()

	waitFor(t, 5*time.Second, func() bool {
		return svc.IsLoading()
	}, "manual refresh never became in-flight")

	svc.Stop()
	close(release)

	select {
	case err := <-refreshDone:
		if err != nil {
			t.Errorf("late response should be discarded silently, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight refresh never returned after Stop")
	}

	// The late response must not have mutated the collection
	if _, found := svc.Document(99); found {
		t.Error("collection mutated by a response that arrived after Stop")
	}
	if svc.IsLoading() {
		t.Error("loading flag stuck after discarded response")
	}

	// Stop is idempotent
	svc.Stop()
}

func TestRefresh_PublishesCollectionRefreshed(t *testing.T) {
	stub := newGatewayStub()
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	stub.setDocs([]map[string]interface{}{
		stubDoc(1, "a.pdf", "PENDING"),
		stubDoc(2, "b.pdf", "PENDING"),
	})

	svc, bus := newTestSyncer(t, server.URL, time.Hour)

	refreshed := make(chan interfaces.Event, 1)
	bus.Subscribe(interfaces.EventCollectionRefreshed, func(ctx context.Context, event interfaces.Event) error {
		refreshed <- event
		return nil
	})

	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	select {
	case event := <-refreshed:
		if count, ok := event.Payload.(int); !ok || count != 2 {
			t.Errorf("expected document count payload 2, got %v", event.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("collection_refreshed never published")
	}
}

func TestDocument_LookupIsPure(t *testing.T) {
	stub := newGatewayStub()
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	stub.setDocs([]map[string]interface{}{
		stubDoc(5, "report.pdf", "COMPLETED"),
	})

	svc, _ := newTestSyncer(t, server.URL, time.Hour)
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	fetchesAfterRefresh := stub.requestCount()

	doc, found := svc.Document(5)
	if !found {
		t.Fatal("expected document 5 in collection")
	}
	if doc.Filename != "report.pdf" {
		t.Errorf("unexpected document: %+v", doc)
	}

	if _, found := svc.Document(404); found {
		t.Error("lookup of unknown id should report absence")
	}

	if stub.requestCount() != fetchesAfterRefresh {
		t.Error("item lookup must not issue network calls")
	}
}

func TestDocuments_ReturnsDefensiveCopy(t *testing.T) {
	stub := newGatewayStub()
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	stub.setDocs([]map[string]interface{}{stubDoc(1, "a.pdf", "PENDING")})

	svc, _ := newTestSyncer(t, server.URL, time.Hour)
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	docs := svc.Documents()
	docs[0].Filename = "tampered.pdf"

	if fresh := svc.Documents(); fresh[0].Filename != "a.pdf" {
		t.Error("caller mutation leaked into the held collection")
	}
}
