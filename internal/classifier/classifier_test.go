package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/itsm-sla/internal/domain"
)

func TestClassify_PresetWins(t *testing.T) {
	got := Classify("password_reset", "vpn broken", "", "Hardware", "Hardware Repair")
	assert.Equal(t, Result{Category: "Hardware", Subcategory: "Hardware Repair"}, got)
}

func TestClassify_EventTypeMapping(t *testing.T) {
	got := Classify("password_reset", "User locked out", "", "", "")
	assert.Equal(t, Result{Category: "User Account", Subcategory: "Password Reset"}, got)
}

func TestClassify_EventTypeFillsMissingHalf(t *testing.T) {
	got := Classify("system_alert", "disk full", "", "Infrastructure", "")
	assert.Equal(t, Result{Category: "Infrastructure", Subcategory: "Alert"}, got)
}

func TestClassify_KeywordScoring(t *testing.T) {
	cases := []struct {
		name        string
		title       string
		description string
		want        Result
	}{
		{"vpn", "VPN keeps disconnecting", "cannot connect to vpn from home", Result{"Network", "VPN"}},
		{"phishing", "Suspicious email received", "looks like phishing scam", Result{"Security", "Phishing"}},
		{"broken laptop", "Laptop screen broken", "the laptop is damaged", Result{"Hardware", "Hardware Repair"}},
		{"mailbox", "Outlook mailbox full", "cannot receive email", Result{"Email", "Email Issue"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify("other", tc.title, tc.description, "", ""))
		})
	}
}

func TestClassify_Fallback(t *testing.T) {
	got := Classify("", "Hello there", "nothing to see", "", "")
	assert.Equal(t, Result{Category: FallbackCategory, Subcategory: FallbackSubcategory}, got)
}

func TestClassifyText_TieKeepsTableOrder(t *testing.T) {
	// Connectivity takes the lead with the bare category score, Wireless overtakes it.
	got := ClassifyText("wifi")
	assert.Equal(t, Result{Category: "Network", Subcategory: "Wireless"}, got)

	// "access" alone: category matches, no subcategory does; first subcategory is kept.
	got = ClassifyText("access")
	assert.Equal(t, Result{Category: "Access", Subcategory: "Access Request"}, got)
}

func TestClassifyText_RepeatedKeywordsCount(t *testing.T) {
	got := ClassifyText("vpn vpn vpn laptop monitor keyboard")
	assert.Equal(t, Result{Category: "Network", Subcategory: "VPN"}, got)
}

func TestDetectPriority(t *testing.T) {
	assert.Equal(t, domain.PriorityCritical, DetectPriority("This is a production down emergency", domain.PriorityMedium))
	assert.Equal(t, domain.PriorityHigh, DetectPriority("Need this ASAP please", domain.PriorityMedium))
	assert.Equal(t, domain.PriorityLow, DetectPriority("minor cosmetic glitch, standard request", domain.PriorityMedium))
	assert.Equal(t, domain.PriorityMedium, DetectPriority("normal request", domain.PriorityLow))
	assert.Equal(t, domain.PriorityHigh, DetectPriority("nothing here", domain.PriorityHigh))
}

func TestExtractAffectedEntities(t *testing.T) {
	got := ExtractAffectedEntities("jane.doe@example.com cannot reach server db-prod-01")
	assert.Equal(t, "jane.doe@example.com", got.User)
	assert.Equal(t, "db-prod-01", got.CI)

	got = ExtractAffectedEntities("ping to 10.0.4.12 fails")
	assert.Equal(t, "", got.User)
	assert.Equal(t, "10.0.4.12", got.CI)
}
