package domain

// CapabilityRecord is the boolean view of a permission set consumed by
// presentation code.
type CapabilityRecord struct {
	Analytics         bool `json:"analytics"`
	PrioritySupport   bool `json:"prioritySupport"`
	CustomBranding    bool `json:"customBranding"`
	BasicApiAccess    bool `json:"basicApiAccess"`
	AdvancedApiAccess bool `json:"advancedApiAccess"`
	BasicCampaigns    bool `json:"basicCampaigns"`
	AdvancedCampaigns bool `json:"advancedCampaigns"`
	UnlimitedProducts bool `json:"unlimitedProducts"`
	DedicatedManager  bool `json:"dedicatedManager"`
	WhiteLabel        bool `json:"whiteLabel"`
}

// ToFeatureFlags derives capability flags. Higher tiers imply their base flag.
func ToFeatureFlags(s Set) CapabilityRecord {
	return CapabilityRecord{
		Analytics:         s.ContainsAny(BasicAnalytics, AdvancedAnalytics),
		PrioritySupport:   s.ContainsAny(PrioritySupport, DedicatedManager),
		CustomBranding:    s.ContainsAny(CustomBranding, WhiteLabel),
		BasicApiAccess:    s.ContainsAny(BasicApiAccess, AdvancedApiAccess),
		AdvancedApiAccess: s.Contains(AdvancedApiAccess),
		BasicCampaigns:    s.ContainsAny(BasicCampaigns, AdvancedCampaigns),
		AdvancedCampaigns: s.Contains(AdvancedCampaigns),
		UnlimitedProducts: s.Contains(UnlimitedProducts),
		DedicatedManager:  s.Contains(DedicatedManager),
		WhiteLabel:        s.Contains(WhiteLabel),
	}
}
