package notification

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appinvoicing "github.com/erp/ledger/internal/application/invoicing"
	"github.com/erp/ledger/internal/domain/invoicing"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, companyID uuid.UUID) (*Hub, string) {
	t.Helper()
	hub := NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, companyID)
	}))
	t.Cleanup(server.Close)
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	companyID := uuid.New()
	hub, url := startHub(t, companyID)

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Subscribers(companyID) == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Subscribers(companyID) == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastReachesCompanySubscribers(t *testing.T) {
	companyID := uuid.New()
	hub, url := startHub(t, companyID)

	first := dial(t, url)
	defer first.Close()
	second := dial(t, url)
	defer second.Close()
	require.Eventually(t, func() bool { return hub.Subscribers(companyID) == 2 }, time.Second, 10*time.Millisecond)

	invoiceID := uuid.New()
	hub.Broadcast(companyID, appinvoicing.LedgerUpdate{
		EventType: invoicing.EventTypePaymentRecorded,
		InvoiceID: invoiceID,
		Status:    string(invoicing.InvoiceStatusPartiallyPaid),
		Balance: invoicing.Balance{
			TotalDue:         valueobject.MustMoney("100.00"),
			TotalPaid:        valueobject.MustMoney("25.00"),
			RemainingBalance: valueobject.MustMoney("75.00"),
		},
		OccurredAt: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
	})

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "ledger_update", msg.Type)
		assert.Equal(t, invoiceID, msg.Data.InvoiceID)
		assert.Equal(t, "partially_paid", msg.Data.Status)
		assert.Equal(t, "75.00", msg.Data.Balance.RemainingBalance.String())
	}
}

func TestHub_BroadcastIsScopedToCompany(t *testing.T) {
	companyID := uuid.New()
	hub, url := startHub(t, companyID)

	conn := dial(t, url)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Subscribers(companyID) == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(uuid.New(), appinvoicing.LedgerUpdate{InvoiceID: uuid.New()})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	var netErr interface{ Timeout() bool }
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestHub_ShutdownClosesConnections(t *testing.T) {
	companyID := uuid.New()
	hub := NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, companyID)
	}))
	defer server.Close()

	conn := dial(t, "ws"+strings.TrimPrefix(server.URL, "http"))
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Subscribers(companyID) == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHub_RejectsUnknownOrigin(t *testing.T) {
	companyID := uuid.New()
	hub := NewHub([]string{"https://app.example.com"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, companyID)
	}))
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://app.example.com"}})
	require.NoError(t, err)
	conn.Close()
}
