package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"slot-auction/internal/domain"
)

// minimumStep is the smallest amount a bid must beat the current bid by when
// no session increment applies.
var minimumStep = decimal.New(1, -domain.MonetaryPrecision)

// ValidateBid decides whether amount may be bid on slot by company. session is
// the session the slot is bound to, nil when the slot is sessionless or the
// session could not be found. It returns nil when the bid is acceptable and
// has no side effects.
func ValidateBid(slot *domain.Slot, session *domain.AuctionSession, company *domain.Company, amount decimal.Decimal) *domain.Rejection {
	if slot == nil {
		return reject(domain.ReasonSlotNotBiddable, "slot does not exist")
	}
	if slot.Status != domain.SlotAuctionActive && slot.Status != domain.SlotAvailable {
		return reject(domain.ReasonSlotNotBiddable, fmt.Sprintf("slot %d is %s", slot.ID, slot.Status))
	}

	if slot.SessionID != "" {
		if session == nil {
			return reject(domain.ReasonNoActiveSession, fmt.Sprintf("session %s not found", slot.SessionID))
		}
		if session.Status != domain.SessionActive {
			return reject(domain.ReasonNoActiveSession, fmt.Sprintf("session %s is %s", session.ID, session.Status))
		}
	} else {
		session = nil
	}

	if company == nil || !company.AuctionEligible {
		return reject(domain.ReasonBidderIneligible, "company is not eligible to bid")
	}
	if company.MaxBid.Valid && amount.GreaterThan(company.MaxBid.Decimal) {
		return reject(domain.ReasonExceedsMaxBid, fmt.Sprintf("bid exceeds company maximum of %s", company.MaxBid.Decimal.StringFixed(domain.MonetaryPrecision)))
	}

	reserve := domain.EffectiveReserve(slot, session)
	if amount.LessThan(reserve) {
		return reject(domain.ReasonBelowReserve, fmt.Sprintf("bid is below the reserve price of %s", reserve.StringFixed(domain.MonetaryPrecision)))
	}

	minimum := MinimumNextBid(slot, session)
	if amount.LessThan(minimum) {
		r := reject(domain.ReasonBidTooLow, fmt.Sprintf("bid must be at least %s", minimum.StringFixed(domain.MonetaryPrecision)))
		r.MinimumAmount = decimal.NewNullDecimal(minimum)
		return r
	}
	return nil
}

// MinimumNextBid is the lowest amount that beats the slot's current bid. The
// session increment applies only once a current bid exists.
func MinimumNextBid(slot *domain.Slot, session *domain.AuctionSession) decimal.Decimal {
	if session != nil && session.BidIncrement.IsPositive() && slot.HasCurrentBid() {
		return slot.CurrentBid.Add(session.BidIncrement)
	}
	return slot.CurrentBid.Add(minimumStep)
}

func reject(reason domain.RejectReason, message string) *domain.Rejection {
	return &domain.Rejection{Reason: reason, Message: message}
}
