package vivid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"vividsync/pkg/errorutil"
	"vividsync/pkg/logger"
)

func newTestClient(baseURL string) *Client {
	return NewClient(baseURL, "test-token", 5*time.Second, 5*time.Second, logger.NewNopLogger())
}

func TestFetchPendingShipment_ParsesLeaves(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("apiToken"); got != "test-token" {
			t.Errorf("apiToken not sent, got %q", got)
		}
		if got := r.URL.Query().Get("status"); got != "PENDING_SHIPMENT" {
			t.Errorf("status param missing, got %q", got)
		}
		w.Write([]byte(`<orders>
			<order>
				<orderId>1001</orderId>
				<event> Concert A </event>
				<eventDate>2026-09-01 19:30:00</eventDate>
				<notes></notes>
			</order>
			<order>
				<orderId>1002</orderId>
				<transferViaURL>true</transferViaURL>
			</order>
		</orders>`))
	}))
	defer srv.Close()

	records, err := newTestClient(srv.URL).FetchPendingShipment(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0]["orderId"] != "1001" {
		t.Fatalf("orderId parse: %q", records[0]["orderId"])
	}
	if records[0]["event"] != "Concert A" {
		t.Fatalf("leaf text must be trimmed: %q", records[0]["event"])
	}
	if v, ok := records[0]["notes"]; !ok || v != "" {
		t.Fatalf("empty leaf must map to empty string, got %q ok=%v", v, ok)
	}
	if records[1]["transferViaURL"] != "true" {
		t.Fatalf("second record fields: %v", records[1])
	}
}

func TestFetchList_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchPendingRetransfer(context.Background())
	if err == nil {
		t.Fatal("non-2xx must surface an error")
	}
	if kind, ok := errorutil.KindOf(err); !ok || kind != errorutil.KindTransport {
		t.Fatalf("want transport kind, got %v", err)
	}
}

func TestFetchList_ParseFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"xml"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchPendingShipment(context.Background())
	if err == nil {
		t.Fatal("malformed response must surface an error")
	}
	if kind, _ := errorutil.KindOf(err); kind != errorutil.KindParse {
		t.Fatalf("want parse kind, got %v", err)
	}
}

func TestFetchOrderDetail_RootIsContainer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("orderId"); got != "1001" {
			t.Errorf("orderId param missing, got %q", got)
		}
		w.Write([]byte(`<order>
			<orderId>1001</orderId>
			<orderToken>TOK-1</orderToken>
			<venue>
				<name>Arena</name>
				<city>Boston</city>
			</venue>
		</order>`))
	}))
	defer srv.Close()

	rec, err := newTestClient(srv.URL).FetchOrderDetail(context.Background(), "1001")
	if err != nil {
		t.Fatalf("detail fetch failed: %v", err)
	}
	if rec["orderToken"] != "TOK-1" {
		t.Fatalf("orderToken: %q", rec["orderToken"])
	}
	// 嵌套结构的叶子也要展平成键值
	if rec["city"] != "Boston" {
		t.Fatalf("nested leaves must be collected: %v", rec)
	}
}

func TestExecuteTransfer_Outcomes(t *testing.T) {
	var gotForm url.Values
	var respBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = r.PostForm
		w.Write([]byte(respBody))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	req := TransferRequest{
		OrderID:    "1001",
		OrderToken: "T1",
		URLList:    []string{"http://a", "http://b"},
		Source:     "Manual_GUI_Automation",
		SourceURL:  "http://a",
	}

	respBody = `<response><success>true</success><message>OK</message></response>`
	out := client.ExecuteTransfer(context.Background(), req)
	if out.Status != TransferSucceeded || out.Message != "OK" {
		t.Fatalf("success outcome: %+v", out)
	}
	if urls := gotForm["transferURLList"]; len(urls) != 2 || urls[0] != "http://a" {
		t.Fatalf("transferURLList form encoding: %v", urls)
	}
	if gotForm.Get("transferSourceURL") != "http://a" {
		t.Fatalf("transferSourceURL: %v", gotForm)
	}
	if gotForm.Get("orderToken") != "T1" {
		t.Fatalf("orderToken: %v", gotForm)
	}

	respBody = `<response><success>false</success><message>Sold</message></response>`
	out = client.ExecuteTransfer(context.Background(), req)
	if out.Status != TransferFailed || out.Message != "Sold" {
		t.Fatalf("failed outcome: %+v", out)
	}

	respBody = `garbage`
	out = client.ExecuteTransfer(context.Background(), req)
	if out.Status != TransferUnknown {
		t.Fatalf("unparseable response must be unknown, got %+v", out)
	}
}

func TestExecuteTransfer_TransportNeverPanics(t *testing.T) {
	// 指向已关闭的服务：传输失败折叠为 unknown
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	out := newTestClient(srv.URL).ExecuteTransfer(context.Background(), TransferRequest{OrderID: "1"})
	if out.Status != TransferUnknown || out.Message == "" {
		t.Fatalf("want unknown with message, got %+v", out)
	}
}

func TestFetchList_MissingMessageDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<response><success>true</success></response>`))
	}))
	defer srv.Close()

	out := newTestClient(srv.URL).ExecuteTransfer(context.Background(), TransferRequest{OrderID: "1"})
	if out.Message != "No response message" {
		t.Fatalf("missing message must default, got %q", out.Message)
	}
	if out.Status != TransferSucceeded {
		t.Fatalf("status: %+v", out)
	}
}
