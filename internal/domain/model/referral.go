package model

import (
	"strconv"
	"strings"
	"time"
)

const referralPrefix = "ref_"

// Referral links an invitee to the user who invited them. One per invitee.
type Referral struct {
	InviterID int64
	InviteeID int64
	CreatedAt time.Time
}

// ParseReferralParam extracts the inviter id from a "ref_<id>" start parameter.
func ParseReferralParam(param string) (int64, bool) {
	param = strings.TrimSpace(param)
	if !strings.HasPrefix(param, referralPrefix) {
		return 0, false
	}
	digits := param[len(referralPrefix):]
	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return 0, false
	}
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ReferralParam is the inverse of ParseReferralParam.
func ReferralParam(inviterID int64) string {
	return referralPrefix + strconv.FormatInt(inviterID, 10)
}
