package classifier

import "github.com/spec-kit/itsm-sla/internal/domain"

// Fallback category used when nothing matches.
const (
	FallbackCategory    = "General"
	FallbackSubcategory = "Other"
)

type subcategoryRule struct {
	name     string
	keywords []string
}

type categoryRule struct {
	name          string
	keywords      []string
	subcategories []subcategoryRule
}

// categoryRules is scanned in order; earlier entries win ties.
var categoryRules = []categoryRule{
	{
		name:     "User Account",
		keywords: []string{"user", "account", "login", "password", "credential", "authentication", "sso", "mfa"},
		subcategories: []subcategoryRule{
			{"Account Creation", []string{"new user", "create account", "onboarding", "new employee", "provision"}},
			{"Password Reset", []string{"password", "reset", "forgot", "locked out", "unlock", "expired password"}},
			{"Account Deactivation", []string{"deactivate", "disable", "offboarding", "terminate", "revoke"}},
			{"Account Modification", []string{"modify", "update account", "change email", "change name"}},
		},
	},
	{
		name:     "Hardware",
		keywords: []string{"laptop", "computer", "monitor", "keyboard", "mouse", "printer", "hardware", "device", "workstation"},
		subcategories: []subcategoryRule{
			{"Hardware Request", []string{"new laptop", "request computer", "need monitor", "order", "procurement"}},
			{"Hardware Repair", []string{"broken", "not working", "repair", "fix", "replace", "damaged", "malfunction"}},
			{"Hardware Return", []string{"return", "decommission", "dispose", "recycle"}},
		},
	},
	{
		name:     "Software",
		keywords: []string{"software", "application", "install", "license", "program", "app", "tool"},
		subcategories: []subcategoryRule{
			{"Software Installation", []string{"install", "setup", "configure", "deploy"}},
			{"Software Issue", []string{"crash", "error", "not working", "bug", "freeze", "slow"}},
			{"Software License", []string{"license", "subscription", "renewal", "activation"}},
			{"Software Removal", []string{"uninstall", "remove", "delete"}},
		},
	},
	{
		name:     "Network",
		keywords: []string{"network", "internet", "wifi", "vpn", "connection", "connectivity", "lan", "wan"},
		subcategories: []subcategoryRule{
			{"Connectivity", []string{"cannot connect", "slow connection", "intermittent", "down", "outage"}},
			{"VPN", []string{"vpn", "remote access", "tunnel", "ssl vpn"}},
			{"Wireless", []string{"wifi", "wireless", "wlan", "access point"}},
		},
	},
	{
		name:     "Security",
		keywords: []string{"security", "virus", "malware", "phishing", "breach", "suspicious", "threat", "vulnerability"},
		subcategories: []subcategoryRule{
			{"Security Incident", []string{"breach", "attack", "compromised", "unauthorized access", "data leak"}},
			{"Malware", []string{"virus", "malware", "ransomware", "trojan", "worm", "spyware"}},
			{"Phishing", []string{"phishing", "suspicious email", "scam", "spoofing"}},
			{"Vulnerability", []string{"vulnerability", "patch", "cve", "exploit"}},
		},
	},
	{
		name:     "Access",
		keywords: []string{"access", "permission", "role", "group", "authorization", "privilege"},
		subcategories: []subcategoryRule{
			{"Access Request", []string{"need access", "request permission", "grant access", "add to group"}},
			{"Access Revocation", []string{"remove access", "revoke", "disable access", "remove from group"}},
			{"Access Review", []string{"review access", "audit", "recertification"}},
		},
	},
	{
		name:     "Email",
		keywords: []string{"email", "outlook", "mailbox", "calendar", "teams", "exchange"},
		subcategories: []subcategoryRule{
			{"Email Configuration", []string{"configure email", "setup outlook", "email settings"}},
			{"Email Issue", []string{"cannot send", "cannot receive", "email not working", "mailbox full"}},
			{"Distribution List", []string{"distribution list", "mailing list", "group email"}},
		},
	},
	{
		name:     "System",
		keywords: []string{"system", "server", "database", "alert", "monitoring", "performance"},
		subcategories: []subcategoryRule{
			{"Alert", []string{"alert", "warning", "critical", "threshold", "monitoring"}},
			{"Performance", []string{"slow", "performance", "latency", "response time"}},
			{"Outage", []string{"outage", "down", "unavailable", "offline"}},
		},
	},
	{
		name:     "Work Order",
		keywords: []string{"work order", "task", "project", "maintenance", "change"},
		subcategories: []subcategoryRule{
			{"General", []string{"general", "task", "work order"}},
			{"Maintenance", []string{"maintenance", "scheduled", "preventive"}},
			{"Project Work", []string{"project", "implementation", "deployment"}},
		},
	},
}

type eventMapping struct {
	category    string
	subcategory string
}

var eventTypeMappings = map[string]eventMapping{
	"user_creation":     {"User Account", "Account Creation"},
	"password_reset":    {"User Account", "Password Reset"},
	"work_order":        {"Work Order", "General"},
	"access_request":    {"Access", "Access Request"},
	"system_alert":      {"System", "Alert"},
	"hardware_request":  {"Hardware", "Hardware Request"},
	"software_request":  {"Software", "Software Installation"},
	"network_issue":     {"Network", "Connectivity"},
	"security_incident": {"Security", "Security Incident"},
}

type priorityRule struct {
	priority domain.Priority
	keywords []string
}

// Medium is checked last: its keywords are the most generic.
var priorityRules = []priorityRule{
	{domain.PriorityCritical, []string{"critical", "emergency", "urgent", "production down", "major outage", "security breach", "ceo", "executive"}},
	{domain.PriorityHigh, []string{"high priority", "important", "asap", "immediate", "blocking", "major issue"}},
	{domain.PriorityLow, []string{"low priority", "when possible", "minor", "cosmetic", "nice to have"}},
	{domain.PriorityMedium, []string{"medium", "normal", "standard"}},
}
