package scheduler

import (
	"time"

	"sendloop/models"
)

// Reasons reported when no lead could be selected. Distinguishing the two
// matters for diagnostics: the first may complete the campaign, the second
// only means follow-ups are still waiting on their delay.
const (
	ReasonNoPendingLeads = "no_pending_leads"
	ReasonWaitingOnDelay = "waiting_on_followup_delay"
)

// Pick is the lead/step pair selected for the next send.
type Pick struct {
	Lead models.CampaignLead
	Step models.SequenceStep
}

// SelectNextLead chooses the next eligible (lead, step) pair for a sender, or
// nil when nothing is eligible. leads must be the campaign's pending,
// non-stopped rows in FIFO order (earliest created first); steps the active
// sequence steps. priority is the campaign's follow-up target (0-100);
// followupsSent/totalSent are the running counts for this tick session.
//
// Leads whose next step no longer exists in the active sequence are returned
// in exhausted for lazy finalization (mark sent) and never picked. The ratio
// decision is an online approximation: it converges on the target share over
// many sends, without guaranteeing it over small windows.
func SelectNextLead(
	leads []models.CampaignLead,
	steps []models.SequenceStep,
	now time.Time,
	priority int,
	followupsSent, totalSent int,
) (pick *Pick, exhausted []uint, reason string) {
	stepsByNumber := make(map[int]models.SequenceStep, len(steps))
	for _, step := range steps {
		if step.IsActive {
			stepsByNumber[step.StepNumber] = step
		}
	}

	var newLeads, followUps []Pick
	waiting := 0

	for _, lead := range leads {
		if lead.IsStopped || lead.Status != models.LeadStatusPending {
			continue
		}

		step, ok := stepsByNumber[lead.CurrentStep+1]
		if !ok {
			exhausted = append(exhausted, lead.ID)
			continue
		}

		if lead.CurrentStep == 0 {
			newLeads = append(newLeads, Pick{Lead: lead, Step: step})
			continue
		}
		if lead.NextSendAt == nil || !lead.NextSendAt.After(now) {
			followUps = append(followUps, Pick{Lead: lead, Step: step})
		} else {
			waiting++
		}
	}

	switch {
	case len(newLeads) > 0 && len(followUps) > 0:
		if preferFollowUp(priority, followupsSent, totalSent) {
			pick = &followUps[0]
		} else {
			pick = &newLeads[0]
		}
	case len(followUps) > 0:
		pick = &followUps[0]
	case len(newLeads) > 0:
		pick = &newLeads[0]
	default:
		if waiting > 0 {
			reason = ReasonWaitingOnDelay
		} else {
			reason = ReasonNoPendingLeads
		}
	}
	return pick, exhausted, reason
}

// preferFollowUp compares the running follow-up share against the target.
func preferFollowUp(priority, followupsSent, totalSent int) bool {
	target := float64(priority) / 100
	running := 0.0
	if totalSent > 0 {
		running = float64(followupsSent) / float64(totalSent)
	}
	return running < target
}
