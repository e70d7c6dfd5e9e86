package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"sendloop/models"
)

func pendingLead(id uint, currentStep int, nextSendAt *time.Time) models.CampaignLead {
	return models.CampaignLead{
		Model:       gorm.Model{ID: id},
		Status:      models.LeadStatusPending,
		CurrentStep: currentStep,
		NextSendAt:  nextSendAt,
	}
}

func activeStep(id uint, number int) models.SequenceStep {
	return models.SequenceStep{
		Model:      gorm.Model{ID: id},
		StepNumber: number,
		IsActive:   true,
	}
}

func TestSelectNextLead_PrefersDueFollowUpAtEvenPriority(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)

	// Lead 1 is new, lead 2 is a follow-up whose delay has elapsed.
	leads := []models.CampaignLead{
		pendingLead(1, 0, nil),
		pendingLead(2, 1, &past),
	}
	steps := []models.SequenceStep{activeStep(10, 1), activeStep(11, 2)}

	// No sends yet this session: running share 0 < target 0.5.
	pick, exhausted, reason := SelectNextLead(leads, steps, now, 50, 0, 0)
	require.NotNil(t, pick)
	assert.Empty(t, exhausted)
	assert.Empty(t, reason)
	assert.Equal(t, uint(2), pick.Lead.ID)
	assert.Equal(t, 2, pick.Step.StepNumber)
}

func TestSelectNextLead_ZeroPriorityPrefersNewLeads(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)

	leads := []models.CampaignLead{
		pendingLead(1, 0, nil),
		pendingLead(2, 1, &past),
	}
	steps := []models.SequenceStep{activeStep(10, 1), activeStep(11, 2)}

	pick, _, _ := SelectNextLead(leads, steps, now, 0, 0, 0)
	require.NotNil(t, pick)
	assert.Equal(t, uint(1), pick.Lead.ID)
}

func TestSelectNextLead_FIFOAmongNewLeads(t *testing.T) {
	now := time.Now()

	leads := []models.CampaignLead{
		pendingLead(5, 0, nil),
		pendingLead(6, 0, nil),
		pendingLead(7, 0, nil),
	}
	steps := []models.SequenceStep{activeStep(10, 1)}

	pick, _, _ := SelectNextLead(leads, steps, now, 50, 0, 0)
	require.NotNil(t, pick)
	assert.Equal(t, uint(5), pick.Lead.ID, "must pick the earliest queued lead")
}

func TestSelectNextLead_FollowUpStillWaitingOnDelay(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)

	leads := []models.CampaignLead{pendingLead(1, 1, &future)}
	steps := []models.SequenceStep{activeStep(10, 1), activeStep(11, 2)}

	pick, exhausted, reason := SelectNextLead(leads, steps, now, 50, 0, 0)
	assert.Nil(t, pick)
	assert.Empty(t, exhausted)
	assert.Equal(t, ReasonWaitingOnDelay, reason)
}

func TestSelectNextLead_NilNextSendAtTreatedAsDue(t *testing.T) {
	now := time.Now()

	leads := []models.CampaignLead{pendingLead(1, 1, nil)}
	steps := []models.SequenceStep{activeStep(10, 1), activeStep(11, 2)}

	pick, _, _ := SelectNextLead(leads, steps, now, 50, 0, 0)
	require.NotNil(t, pick)
	assert.Equal(t, uint(1), pick.Lead.ID)
}

func TestSelectNextLead_ExhaustedLeadsAreFinalizedNotPicked(t *testing.T) {
	now := time.Now()

	leads := []models.CampaignLead{
		pendingLead(1, 3, nil), // step 4 does not exist
		pendingLead(2, 0, nil),
	}
	steps := []models.SequenceStep{activeStep(10, 1), activeStep(11, 2), activeStep(12, 3)}

	pick, exhausted, reason := SelectNextLead(leads, steps, now, 50, 0, 0)
	require.NotNil(t, pick)
	assert.Equal(t, uint(2), pick.Lead.ID)
	assert.Equal(t, []uint{1}, exhausted)
	assert.Empty(t, reason)
}

func TestSelectNextLead_InactiveNextStepCountsAsExhausted(t *testing.T) {
	now := time.Now()

	inactive := activeStep(11, 2)
	inactive.IsActive = false

	leads := []models.CampaignLead{pendingLead(1, 1, nil)}
	steps := []models.SequenceStep{activeStep(10, 1), inactive}

	pick, exhausted, _ := SelectNextLead(leads, steps, now, 50, 0, 0)
	assert.Nil(t, pick)
	assert.Equal(t, []uint{1}, exhausted)
}

func TestSelectNextLead_StoppedLeadsSkipped(t *testing.T) {
	now := time.Now()

	stopped := pendingLead(1, 0, nil)
	stopped.IsStopped = true

	leads := []models.CampaignLead{stopped}
	steps := []models.SequenceStep{activeStep(10, 1)}

	pick, exhausted, reason := SelectNextLead(leads, steps, now, 50, 0, 0)
	assert.Nil(t, pick)
	assert.Empty(t, exhausted)
	assert.Equal(t, ReasonNoPendingLeads, reason)
}

func TestSelectNextLead_EmptyInputs(t *testing.T) {
	pick, exhausted, reason := SelectNextLead(nil, nil, time.Now(), 50, 0, 0)
	assert.Nil(t, pick)
	assert.Empty(t, exhausted)
	assert.Equal(t, ReasonNoPendingLeads, reason)
}

func TestPreferFollowUp(t *testing.T) {
	cases := []struct {
		name          string
		priority      int
		followupsSent int
		totalSent     int
		want          bool
	}{
		{"no sends yet, positive priority", 50, 0, 0, true},
		{"no sends yet, zero priority", 0, 0, 0, false},
		{"running share below target", 50, 1, 4, true},
		{"running share at target", 50, 2, 4, false},
		{"running share above target", 50, 3, 4, false},
		{"full priority always prefers follow-ups", 100, 9, 10, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, preferFollowUp(tc.priority, tc.followupsSent, tc.totalSent))
		})
	}
}
