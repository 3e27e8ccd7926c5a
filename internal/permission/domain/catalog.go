// Package domain holds the permission catalog shared by every entitlement
// source. Tokens are append-only: a published token is never renamed or removed.
package domain

import (
	"errors"
	"sort"
	"strings"
)

// Permission is a capability token. The wire string equals the constant name.
type Permission string

// Category groups permissions for display only.
type Category string

const (
	CategoryAnalytics   Category = "analytics"
	CategoryConnections Category = "connections"
	CategoryCampaigns   Category = "campaigns"
	CategorySupport     Category = "support"
	CategoryBranding    Category = "branding"
	CategoryAPI         Category = "api"
	CategoryProducts    Category = "products"
	CategorySecurity    Category = "security"
	CategoryEnterprise  Category = "enterprise"
)

const (
	BasicAnalytics    Permission = "BasicAnalytics"
	AdvancedAnalytics Permission = "AdvancedAnalytics"
	ExportReports     Permission = "ExportReports"

	BasicConnections     Permission = "BasicConnections"
	UnlimitedConnections Permission = "UnlimitedConnections"
	BasicInvites         Permission = "BasicInvites"
	UnlimitedInvites     Permission = "UnlimitedInvites"

	BasicCampaigns    Permission = "BasicCampaigns"
	AdvancedCampaigns Permission = "AdvancedCampaigns"

	EmailSupport     Permission = "EmailSupport"
	PrioritySupport  Permission = "PrioritySupport"
	DedicatedManager Permission = "DedicatedManager"

	CustomBranding Permission = "CustomBranding"
	WhiteLabel     Permission = "WhiteLabel"

	BasicApiAccess    Permission = "BasicApiAccess"
	AdvancedApiAccess Permission = "AdvancedApiAccess"

	BasicProducts     Permission = "BasicProducts"
	UnlimitedProducts Permission = "UnlimitedProducts"

	TwoFactorAuth Permission = "TwoFactorAuth"
	SingleSignOn  Permission = "SingleSignOn"
	AuditLogs     Permission = "AuditLogs"

	CustomIntegrations Permission = "CustomIntegrations"
	SLAGuarantee       Permission = "SLAGuarantee"
)

var ErrInvalidPermission = errors.New("invalid_permission")

var catalog = map[Permission]Category{
	BasicAnalytics:    CategoryAnalytics,
	AdvancedAnalytics: CategoryAnalytics,
	ExportReports:     CategoryAnalytics,

	BasicConnections:     CategoryConnections,
	UnlimitedConnections: CategoryConnections,
	BasicInvites:         CategoryConnections,
	UnlimitedInvites:     CategoryConnections,

	BasicCampaigns:    CategoryCampaigns,
	AdvancedCampaigns: CategoryCampaigns,

	EmailSupport:     CategorySupport,
	PrioritySupport:  CategorySupport,
	DedicatedManager: CategorySupport,

	CustomBranding: CategoryBranding,
	WhiteLabel:     CategoryBranding,

	BasicApiAccess:    CategoryAPI,
	AdvancedApiAccess: CategoryAPI,

	BasicProducts:     CategoryProducts,
	UnlimitedProducts: CategoryProducts,

	TwoFactorAuth: CategorySecurity,
	SingleSignOn:  CategorySecurity,
	AuditLogs:     CategorySecurity,

	CustomIntegrations: CategoryEnterprise,
	SLAGuarantee:       CategoryEnterprise,
}

// Granting any of these requires an approved business verification.
var verifiedOnly = map[Permission]struct{}{
	WhiteLabel:         {},
	AdvancedApiAccess:  {},
	CustomIntegrations: {},
}

func IsValid(p Permission) bool {
	_, ok := catalog[p]
	return ok
}

// CategoryOf returns the display category, or "" for unknown tokens.
func CategoryOf(p Permission) Category {
	return catalog[p]
}

func RequiresVerification(p Permission) bool {
	_, ok := verifiedOnly[p]
	return ok
}

// Parse validates external input against the catalog. Matching is exact.
func Parse(value string) (Permission, error) {
	p := Permission(strings.TrimSpace(value))
	if !IsValid(p) {
		return "", ErrInvalidPermission
	}
	return p, nil
}

// ParseAll parses every value, failing on the first unknown token.
func ParseAll(values []string) (Set, error) {
	perms := make([]Permission, 0, len(values))
	for _, value := range values {
		p, err := Parse(value)
		if err != nil {
			return Set{}, err
		}
		perms = append(perms, p)
	}
	return NewSet(perms...), nil
}

// All returns every catalog token in lexical order.
func All() []Permission {
	all := make([]Permission, 0, len(catalog))
	for p := range catalog {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	return all
}

// Grouped returns the catalog keyed by category for display.
func Grouped() map[Category][]Permission {
	grouped := make(map[Category][]Permission)
	for _, p := range All() {
		c := catalog[p]
		grouped[c] = append(grouped[c], p)
	}
	return grouped
}
