package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	permissiondomain "github.com/smallbiznis/marketplace/internal/permission/domain"
	plandomain "github.com/smallbiznis/marketplace/internal/plan/domain"
	"github.com/smallbiznis/marketplace/internal/quota"
	teamdomain "github.com/smallbiznis/marketplace/internal/team/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type defaultPlan struct {
	code             string
	name             string
	businessType     teamdomain.BusinessType
	permissions      []permissiondomain.Permission
	maxConnections   int64
	maxInvites       int64
	maxProducts      int64
	apiCallsPerMonth int64
	trialDays        int
}

var defaultPlans = []defaultPlan{
	{
		code: "brand-starter", name: "Brand Starter", businessType: teamdomain.BusinessTypeBrand,
		permissions: []permissiondomain.Permission{
			permissiondomain.BasicAnalytics, permissiondomain.BasicConnections, permissiondomain.BasicInvites,
			permissiondomain.BasicCampaigns, permissiondomain.BasicProducts, permissiondomain.EmailSupport,
		},
		maxConnections: 25, maxInvites: 10, maxProducts: 50, apiCallsPerMonth: 10000, trialDays: 14,
	},
	{
		code: "brand-growth", name: "Brand Growth", businessType: teamdomain.BusinessTypeBrand,
		permissions: []permissiondomain.Permission{
			permissiondomain.BasicAnalytics, permissiondomain.AdvancedAnalytics, permissiondomain.ExportReports,
			permissiondomain.BasicConnections, permissiondomain.BasicInvites, permissiondomain.AdvancedCampaigns,
			permissiondomain.BasicProducts, permissiondomain.PrioritySupport, permissiondomain.CustomBranding,
			permissiondomain.BasicApiAccess, permissiondomain.TwoFactorAuth,
		},
		maxConnections: 250, maxInvites: 100, maxProducts: 1000, apiCallsPerMonth: 100000, trialDays: 14,
	},
	{
		code: "brand-enterprise", name: "Brand Enterprise", businessType: teamdomain.BusinessTypeBrand,
		permissions: []permissiondomain.Permission{
			permissiondomain.AdvancedAnalytics, permissiondomain.ExportReports, permissiondomain.UnlimitedConnections,
			permissiondomain.UnlimitedInvites, permissiondomain.AdvancedCampaigns, permissiondomain.UnlimitedProducts,
			permissiondomain.DedicatedManager, permissiondomain.WhiteLabel, permissiondomain.AdvancedApiAccess,
			permissiondomain.SingleSignOn, permissiondomain.AuditLogs, permissiondomain.CustomIntegrations,
			permissiondomain.SLAGuarantee,
		},
		maxConnections: quota.Unlimited, maxInvites: quota.Unlimited, maxProducts: quota.Unlimited, apiCallsPerMonth: quota.Unlimited,
	},
	{
		code: "creator-starter", name: "Creator Starter", businessType: teamdomain.BusinessTypeCreator,
		permissions: []permissiondomain.Permission{
			permissiondomain.BasicAnalytics, permissiondomain.BasicConnections, permissiondomain.BasicCampaigns,
			permissiondomain.EmailSupport,
		},
		maxConnections: 10, maxInvites: 0, maxProducts: 20, apiCallsPerMonth: 5000, trialDays: 7,
	},
	{
		code: "creator-pro", name: "Creator Pro", businessType: teamdomain.BusinessTypeCreator,
		permissions: []permissiondomain.Permission{
			permissiondomain.AdvancedAnalytics, permissiondomain.UnlimitedConnections, permissiondomain.BasicInvites,
			permissiondomain.AdvancedCampaigns, permissiondomain.PrioritySupport, permissiondomain.CustomBranding,
		},
		maxConnections: quota.Unlimited, maxInvites: 25, maxProducts: 200, apiCallsPerMonth: 50000, trialDays: 7,
	},
	{
		code: "retailer-starter", name: "Retailer Starter", businessType: teamdomain.BusinessTypeRetailer,
		permissions: []permissiondomain.Permission{
			permissiondomain.BasicAnalytics, permissiondomain.BasicConnections, permissiondomain.BasicProducts,
			permissiondomain.EmailSupport,
		},
		maxConnections: 15, maxInvites: 0, maxProducts: 100, apiCallsPerMonth: 10000, trialDays: 14,
	},
	{
		code: "retailer-growth", name: "Retailer Growth", businessType: teamdomain.BusinessTypeRetailer,
		permissions: []permissiondomain.Permission{
			permissiondomain.AdvancedAnalytics, permissiondomain.ExportReports, permissiondomain.BasicConnections,
			permissiondomain.BasicInvites, permissiondomain.UnlimitedProducts, permissiondomain.PrioritySupport,
			permissiondomain.BasicApiAccess,
		},
		maxConnections: 150, maxInvites: 20, maxProducts: quota.Unlimited, apiCallsPerMonth: 100000, trialDays: 14,
	},
}

// DefaultPlanCodes lists the codes EnsureDefaultPlans manages.
func DefaultPlanCodes() []string {
	codes := make([]string, 0, len(defaultPlans))
	for _, p := range defaultPlans {
		codes = append(codes, p.code)
	}
	return codes
}

// EnsureDefaultPlans inserts the built-in plan catalog. Existing codes are
// left untouched because plans are immutable once created.
func EnsureDefaultPlans(ctx context.Context, db *gorm.DB, node *snowflake.Node) (int, error) {
	if db == nil {
		return 0, errors.New("seed database handle is required")
	}
	if node == nil {
		return 0, errors.New("seed id generator is required")
	}

	created := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, def := range defaultPlans {
			ok, err := ensurePlanTx(ctx, tx, node, def)
			if err != nil {
				return err
			}
			if ok {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

func ensurePlanTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, def defaultPlan) (bool, error) {
	var existing plandomain.Plan
	err := tx.WithContext(ctx).Where("code = ?", def.code).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	plan := plandomain.Plan{
		ID:               node.Generate(),
		Code:             def.code,
		Name:             def.name,
		BusinessType:     def.businessType,
		Permissions:      datatypes.JSONSlice[string](permissiondomain.NewSet(def.permissions...).Strings()),
		MaxConnections:   def.maxConnections,
		MaxInvites:       def.maxInvites,
		MaxProducts:      def.maxProducts,
		APICallsPerMonth: def.apiCallsPerMonth,
		TrialDays:        def.trialDays,
		CreatedAt:        time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(&plan).Error; err != nil {
		return false, err
	}
	return true, nil
}
