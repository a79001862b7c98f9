package billing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/candicemaschek-bit/dream-interpreter-ai-app/app/models"
)

const providerPatreon = "patreon"

// Service syncs provider webhook state into local subscription tiers.
type Service struct {
	repo Repository
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// ProcessPatreonMemberEvent persists a verified members webhook payload and
// applies the resulting subscription tier to the matching profile. Events are
// deduplicated by payload hash, so provider redeliveries are no-ops. Reports
// whether a tier change was applied. Payload problems are recorded on the
// stored event rather than returned; the provider should not retry those.
func (s *Service) ProcessPatreonMemberEvent(eventType string, payload []byte) (bool, error) {
	sum := sha256.Sum256(payload)
	event := &models.BillingEvent{
		Provider:        providerPatreon,
		ProviderEventID: "hash:" + hex.EncodeToString(sum[:]),
		EventType:       strings.TrimSpace(eventType),
		PayloadJSON:     string(payload),
		SignatureValid:  true,
	}

	created, stored, err := s.repo.CreateEventIfNotExists(event)
	if err != nil {
		return false, err
	}
	if !created {
		log.Infof("[Billing] duplicate %s event %s, skipping", providerPatreon, stored.ProviderEventID)
		return false, nil
	}

	member, err := ParsePatreonMemberEvent(payload)
	if err != nil {
		return false, s.repo.MarkProcessed(stored.ID, fmt.Sprintf("parse: %v", err))
	}

	tier := TierForPledge(member.PatronStatus, member.EntitledCents)
	applied, err := s.repo.SetTierByEmail(member.Email, string(tier))
	if err != nil {
		if markErr := s.repo.MarkProcessed(stored.ID, err.Error()); markErr != nil {
			log.Errorf("[Billing] failed to mark event %d: %v", stored.ID, markErr)
		}
		return false, err
	}

	processingError := ""
	if !applied {
		// The patron may not have signed in to the app yet; their tier is
		// picked up on the next webhook delivery after the profile exists.
		processingError = "no profile for patron email"
		log.Warnf("[Billing] member %s has no matching profile", member.MemberID)
	} else {
		log.Infof("[Billing] member %s set to tier %s", member.MemberID, tier)
	}
	return applied, s.repo.MarkProcessed(stored.ID, processingError)
}
