package services

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSettingsUpdateDistinguishesAbsentAndNull(t *testing.T) {
	var u SettingsUpdate
	raw := `{"enabled": false, "snoozed_until": null, "style": "  "}`
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !u.Enabled.Set || u.Enabled.Value == nil || *u.Enabled.Value {
		t.Fatalf("enabled should decode to explicit false, got %+v", u.Enabled)
	}
	if !u.SnoozedUntil.Set || u.SnoozedUntil.Value != nil {
		t.Fatalf("null snooze should decode to set-with-nil, got %+v", u.SnoozedUntil)
	}
	if !u.Style.Set || u.Style.Value != nil {
		t.Fatalf("blank style should decode to set-with-nil, got %+v", u.Style)
	}
	if u.FrequencyLevel.Set || u.Timezone.Set {
		t.Fatal("absent fields must stay unset")
	}
}

func TestOptionalTimeParsesRFC3339(t *testing.T) {
	var u SettingsUpdate
	raw := `{"snoozed_until": "2025-06-10T15:00:00Z"}`
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)
	if !u.SnoozedUntil.Set || u.SnoozedUntil.Value == nil || !u.SnoozedUntil.Value.Equal(want) {
		t.Fatalf("expected %v, got %+v", want, u.SnoozedUntil)
	}

	if err := json.Unmarshal([]byte(`{"snoozed_until": "tomorrow"}`), &u); err == nil {
		t.Fatal("expected parse error for non-RFC3339 value")
	}
}
