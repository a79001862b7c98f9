package billing

import (
	"encoding/json"
	"errors"
	"strings"
)

// PatreonMemberEvent is the slice of a Patreon members webhook payload that
// tier syncing needs. Patrons are matched to local profiles by email.
type PatreonMemberEvent struct {
	MemberID      string
	Email         string
	PatronStatus  string
	EntitledCents int
}

// ParsePatreonMemberEvent extracts the member state from a members:create,
// members:update or members:delete webhook payload.
func ParsePatreonMemberEvent(payload []byte) (*PatreonMemberEvent, error) {
	var raw struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				Email                        string `json:"email"`
				PatronStatus                 string `json:"patron_status"`
				CurrentlyEntitledAmountCents int    `json:"currently_entitled_amount_cents"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}

	if strings.TrimSpace(raw.Data.ID) == "" {
		return nil, errors.New("member payload missing data.id")
	}
	email := strings.TrimSpace(strings.ToLower(raw.Data.Attributes.Email))
	if email == "" {
		return nil, errors.New("member payload missing email")
	}

	return &PatreonMemberEvent{
		MemberID:      raw.Data.ID,
		Email:         email,
		PatronStatus:  strings.ToLower(strings.TrimSpace(raw.Data.Attributes.PatronStatus)),
		EntitledCents: raw.Data.Attributes.CurrentlyEntitledAmountCents,
	}, nil
}
