package assessments

import (
	"strings"

	"assessment-backend/internal/shared/config"
)

const (
	DomainStrategicAlignment   = "strategic_alignment"
	DomainFinancialManagement  = "financial_management"
	DomainRevenueEngine        = "revenue_engine"
	DomainOperationsExcellence = "operations_excellence"
	DomainPeopleCulture        = "people_culture"
	DomainTechnologyInnovation = "technology_innovation"
	DomainCustomerExperience   = "customer_experience"
	DomainSupplyChain          = "supply_chain"
	DomainRiskCompliance       = "risk_compliance"
	DomainPartnerships         = "partnerships"
	DomainCustomerSuccess      = "customer_success"
	DomainMarketIntelligence   = "market_intelligence"
)

var domainNames = map[string]string{
	DomainStrategicAlignment:   "Strategic Alignment",
	DomainFinancialManagement:  "Financial Management",
	DomainRevenueEngine:        "Revenue Engine",
	DomainOperationsExcellence: "Operations Excellence",
	DomainPeopleCulture:        "People & Culture",
	DomainTechnologyInnovation: "Technology & Innovation",
	DomainCustomerExperience:   "Customer Experience",
	DomainSupplyChain:          "Supply Chain",
	DomainRiskCompliance:       "Risk & Compliance",
	DomainPartnerships:         "Partnerships",
	DomainCustomerSuccess:      "Customer Success",
	DomainMarketIntelligence:   "Market Intelligence",
}

// Domains returns the 12 domain slugs in presentation order.
func Domains() []string {
	return []string{
		DomainStrategicAlignment,
		DomainFinancialManagement,
		DomainRevenueEngine,
		DomainOperationsExcellence,
		DomainPeopleCulture,
		DomainTechnologyInnovation,
		DomainCustomerExperience,
		DomainSupplyChain,
		DomainRiskCompliance,
		DomainPartnerships,
		DomainCustomerSuccess,
		DomainMarketIntelligence,
	}
}

// IsDomain reports whether slug is one of the 12 domains.
func IsDomain(slug string) bool {
	_, ok := domainNames[slug]
	return ok
}

// DisplayName returns the human name for a domain slug.
func DisplayName(slug string) string {
	if name, ok := domainNames[slug]; ok {
		return name
	}
	return slug
}

// NormalizeDomain accepts a slug or display name and returns the slug.
func NormalizeDomain(raw string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if IsDomain(key) {
		return key, true
	}
	for slug, name := range domainNames {
		if strings.EqualFold(name, raw) {
			return slug, true
		}
	}
	key = strings.NewReplacer(" & ", "_", " ", "_", "-", "_").Replace(key)
	if IsDomain(key) {
		return key, true
	}
	return "", false
}

// ResolvePolicy rewrites the policy's quorum to domain slugs, accepting slugs
// or display names, and rejects names that match no domain.
func ResolvePolicy(p config.Policy) (config.Policy, error) {
	return p.ResolveQuorum(NormalizeDomain)
}
