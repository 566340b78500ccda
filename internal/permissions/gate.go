package permissions

// Tier is the subscription level governing send permissions.
type Tier string

const (
	TierFree    Tier = "free"
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
)

// UnlimitedMessages is the daily-limit sentinel meaning no cap.
const UnlimitedMessages = -1

type tierCaps struct {
	dailyLimit      int
	voice           bool
	images          bool
	bannerThreshold int // show upgrade banner when 0 < remaining <= threshold
}

var capsByTier = map[Tier]tierCaps{
	TierFree:    {dailyLimit: 10, voice: false, images: false, bannerThreshold: 3},
	TierBasic:   {dailyLimit: 50, voice: true, images: true, bannerThreshold: 5},
	TierPremium: {dailyLimit: UnlimitedMessages, voice: true, images: true},
}

// Snapshot is a derived view of send eligibility. It is never stored
// or mutated; every field is a deterministic projection of the inputs.
type Snapshot struct {
	Tier                    Tier
	CanSendMessages         bool
	CanSendVoice            bool
	CanSendImages           bool
	DailyLimit              int
	MessagesRemaining       int
	IsLimitReached          bool
	ShouldShowUpgradeBanner bool
}

// Compute derives the permission snapshot for a tier and the number of
// messages already sent today. Unknown tiers fall back to free.
func Compute(tier Tier, messagesSentToday int) Snapshot {
	caps, ok := capsByTier[tier]
	if !ok {
		tier = TierFree
		caps = capsByTier[TierFree]
	}

	remaining := UnlimitedMessages
	limitReached := false
	if caps.dailyLimit != UnlimitedMessages {
		remaining = caps.dailyLimit - messagesSentToday
		if remaining < 0 {
			remaining = 0
		}
		limitReached = remaining <= 0
	}

	banner := limitReached
	if !banner && remaining != UnlimitedMessages && remaining > 0 && remaining <= caps.bannerThreshold {
		banner = true
	}

	return Snapshot{
		Tier:                    tier,
		CanSendMessages:         !limitReached,
		CanSendVoice:            caps.voice && !limitReached,
		CanSendImages:           caps.images && !limitReached,
		DailyLimit:              caps.dailyLimit,
		MessagesRemaining:       remaining,
		IsLimitReached:          limitReached,
		ShouldShowUpgradeBanner: banner,
	}
}
