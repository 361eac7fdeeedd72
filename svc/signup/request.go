package signup

import (
	"regexp"
	"strings"

	"github.com/officekit/accountd/pkg/tenantid"
	"github.com/officekit/accountd/pkg/validator"
	"github.com/officekit/accountd/svc/subscription"
)

const (
	defaultCountry = "IN"
	defaultLocale  = "en-GB"
)

var mobilePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// disallowedRoles can never be granted through signup. The comparison is
// case-insensitive and separator-insensitive.
var disallowedRoles = map[string]struct{}{
	"superadmin": {},
	"realmadmin": {},
}

// Request is an inbound signup. Optional fields default in ApplyDefaults.
type Request struct {
	CompanyName    string                    `json:"companyName"`
	DisplayName    string                    `json:"displayName"`
	AdminEmail     string                    `json:"adminEmail"`
	AdminFirstName string                    `json:"adminFirstName"`
	AdminLastName  string                    `json:"adminLastName"`
	AdminPassword  string                    `json:"adminPassword,omitempty"`
	Description    string                    `json:"description,omitempty"`
	AcceptTerms    bool                      `json:"acceptTerms"`
	DefaultRoles   []string                  `json:"defaultRoles,omitempty"`
	MobileNumber   string                    `json:"mobileNumber,omitempty"`
	Country        string                    `json:"country,omitempty"`
	Locale         string                    `json:"locale,omitempty"`
	PlanCode       string                    `json:"planCode,omitempty"`
	BillingCycle   subscription.BillingCycle `json:"billingCycle,omitempty"`
	StartTrial     bool                      `json:"startTrial"`
}

// ApplyDefaults fills country, locale, and billing cycle when absent.
func (r *Request) ApplyDefaults() {
	if r.Country == "" {
		r.Country = defaultCountry
	}
	if r.Locale == "" {
		r.Locale = defaultLocale
	}
	if r.BillingCycle == "" {
		r.BillingCycle = subscription.CycleMonthly
	}
}

// validate collects every violated constraint. It never fails fast: a
// client gets the full list in one round trip.
func (r Request) validate(allowedDomains, bannedWords []string) validator.ValidationErrors {
	rules := []validator.Rule{
		validator.Required("companyName", r.CompanyName),
		validator.LenBetween("companyName", r.CompanyName, 3, 30),
		{
			Check: func() bool { return !tenantid.IsReserved(r.CompanyName) },
			Error: validator.ValidationError{Field: "companyName", Message: "this tenant id is reserved"},
		},
		validator.Required("displayName", r.DisplayName),
		validator.LenBetween("displayName", r.DisplayName, 3, 100),
		validator.Required("adminEmail", r.AdminEmail),
		validator.Email("adminEmail", r.AdminEmail),
		validator.LenBetween("adminFirstName", r.AdminFirstName, 2, 50),
		validator.LenBetween("adminLastName", r.AdminLastName, 2, 50),
		validator.MaxLen("description", r.Description, 255),
		validator.True("acceptTerms", r.AcceptTerms, "terms of service must be accepted"),
		validator.When(r.MobileNumber != "",
			validator.Matches("mobileNumber", r.MobileNumber, mobilePattern, "mobile number must be a valid phone number")),
		{
			Check: func() bool { return r.BillingCycle.Valid() },
			Error: validator.ValidationError{Field: "billingCycle", Message: "billing cycle must be monthly, quarterly, or yearly"},
		},
		{
			Check: func() bool { return emailDomainAllowed(r.AdminEmail, allowedDomains) },
			Error: validator.ValidationError{Field: "adminEmail", Message: "admin email domain is not allowed"},
		},
		{
			Check: func() bool { return !containsBannedWord(r.DisplayName, bannedWords) },
			Error: validator.ValidationError{Field: "displayName", Message: "display name contains disallowed content"},
		},
	}
	for _, role := range r.DefaultRoles {
		role := role
		rules = append(rules, validator.Rule{
			Check: func() bool { return roleAllowed(role) },
			Error: validator.ValidationError{Field: "defaultRoles", Message: "role " + role + " cannot be assigned at signup"},
		})
	}

	err := validator.Apply(rules...)
	return validator.Extract(err)
}

func emailDomainAllowed(email string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	for _, d := range allowed {
		if domain == strings.ToLower(d) {
			return true
		}
	}
	return false
}

func containsBannedWord(name string, banned []string) bool {
	lower := strings.ToLower(name)
	for _, word := range banned {
		if word != "" && strings.Contains(lower, strings.ToLower(word)) {
			return true
		}
	}
	return false
}

func roleAllowed(role string) bool {
	normalized := strings.ToLower(role)
	normalized = strings.NewReplacer("-", "", "_", "", " ", "").Replace(normalized)
	_, forbidden := disallowedRoles[normalized]
	return !forbidden
}

// Result is what a successful signup returns. Generated secrets and the
// temporary admin password never appear here.
type Result struct {
	TenantID        string `json:"tenantId"`
	Realm           string `json:"realm"`
	AdminEmail      string `json:"adminEmail"`
	APIClientID     string `json:"apiClientId"`
	UIClientID      string `json:"uiClientId"`
	Status          string `json:"status"`
	Message         string `json:"message"`
	LoginURL        string `json:"loginUrl"`
	AdminConsoleURL string `json:"adminConsoleUrl"`
}
