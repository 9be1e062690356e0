package userws

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSubscribeRequest_JSONShape(t *testing.T) {
	req := subscribeRequest{
		Type: "user",
		Auth: Auth{APIKey: "k", Secret: "s", Passphrase: "p"},
	}
	b, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, ok := m["type"].(string); !ok || got != "user" {
		t.Fatalf("type mismatch: %#v", m["type"])
	}
	auth, ok := m["auth"].(map[string]any)
	if !ok {
		t.Fatalf("auth mismatch: %#v", m["auth"])
	}
	if auth["apiKey"] != "k" || auth["secret"] != "s" || auth["passphrase"] != "p" {
		t.Fatalf("auth fields: %#v", auth)
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	o := (Options{}).withDefaults()
	if o.PingInterval != DefaultPingInterval {
		t.Fatalf("PingInterval: got=%s want=%s", o.PingInterval, DefaultPingInterval)
	}
	if o.BackoffMin <= 0 || o.BackoffMax != 30*time.Second {
		t.Fatalf("backoff defaults: %#v", o)
	}
	if o.OutBuffer <= 0 {
		t.Fatalf("OutBuffer default missing: %#v", o)
	}
}

func TestNextBackoff_MultiplicativeWithCap(t *testing.T) {
	if got := nextBackoff(10*time.Second, 30*time.Second); got != 17*time.Second {
		t.Fatalf("got=%s want=%s", got, 17*time.Second)
	}
	if got := nextBackoff(25*time.Second, 30*time.Second); got != 30*time.Second {
		t.Fatalf("got=%s want=%s", got, 30*time.Second)
	}
}

func TestExtractFills(t *testing.T) {
	cases := []struct {
		name string
		msg  string
		want int
	}{
		{
			name: "bare fill",
			msg:  `{"trade_id":"t1","token_id":"tok","side":"BUY","size":10,"price":0.4}`,
			want: 1,
		},
		{
			name: "array of fills",
			msg:  `[{"trade_id":"t1","token_id":"tok","side":"BUY","size":10,"price":0.4},{"tradeId":"t2","assetId":"tok","taker_side":"SELL","amount":"5","rate":"0.5"}]`,
			want: 2,
		},
		{
			name: "trades envelope",
			msg:  `{"event_type":"trade","trades":[{"id":"t3","tokenId":"tok","side":"buy","shares":1,"price":0.9}]}`,
			want: 1,
		},
		{
			name: "nested data envelope",
			msg:  `{"type":"user","data":{"fills":[{"trade_id":"t4","token_id":"tok","side":"SELL","size":2,"price":0.3}]}}`,
			want: 1,
		},
		{
			name: "non-trade message",
			msg:  `{"type":"subscribed","channel":"user"}`,
			want: 0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fills, err := ExtractFills([]byte(tc.msg))
			if err != nil {
				t.Fatalf("ExtractFills: %v", err)
			}
			if len(fills) != tc.want {
				t.Fatalf("fills: got %d want %d (%+v)", len(fills), tc.want, fills)
			}
			for _, f := range fills {
				if f.TradeID == "" || f.TokenID == "" {
					t.Fatalf("fill missing ids: %+v", f)
				}
			}
		})
	}
}

func TestExtractFillsMalformed(t *testing.T) {
	if _, err := ExtractFills([]byte(`{not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
	fills, err := ExtractFills([]byte(`   `))
	if err != nil || fills != nil {
		t.Fatalf("blank message: %v %v", fills, err)
	}
}
