package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestReconciliation_ActualClosingMirrorsGLBalance(t *testing.T) {
	tests := []struct {
		name string
		gl   decimal.NullDecimal
		want string
	}{
		{"balance present", decimal.NewNullDecimal(decimal.RequireFromString("1150")), `"1150"`},
		{"no TB row", decimal.NullDecimal{}, `null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(&Reconciliation{ID: "r1", Status: StatusOpen, GLBalance: tt.gl})
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(data, &fields); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if got := string(fields["actualClosing"]); got != tt.want {
				t.Errorf("actualClosing = %s, want %s", got, tt.want)
			}
			if got := string(fields["glBalance"]); got != tt.want {
				t.Errorf("glBalance = %s, want %s", got, tt.want)
			}
			if string(fields["id"]) != `"r1"` || string(fields["status"]) != `"OPEN"` {
				t.Errorf("plain fields lost: %s", data)
			}

			var back Reconciliation
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("Unmarshal into Reconciliation failed: %v", err)
			}
			if back.ID != "r1" || back.GLBalance.Valid != tt.gl.Valid {
				t.Errorf("round trip = %+v", back)
			}
		})
	}
}
