package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payops/sentinel/internal/decision"
)

type fakeTarget struct {
	volume  map[string]float64
	success map[string]float64
	retry   float64
	cleared int
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{volume: map[string]float64{}, success: map[string]float64{}, retry: 1.0}
}

func (f *fakeTarget) SetVolumeMultiplier(issuer string, m float64)  { f.volume[issuer] = m }
func (f *fakeTarget) SetSuccessMultiplier(issuer string, m float64) { f.success[issuer] = m }
func (f *fakeTarget) SetRetryMultiplier(m float64)                  { f.retry = m }
func (f *fakeTarget) ClearMultipliers() {
	f.cleared++
	f.volume = map[string]float64{}
	f.success = map[string]float64{}
	f.retry = 1.0
}

func TestController_ApplyIntervention_SuppressPath(t *testing.T) {
	target := newFakeTarget()
	c := New(target, nil)

	opt := decision.InterventionOption{Kind: decision.KindSuppressPath, Target: "HDFC"}
	c.ApplyIntervention("i1", opt, 0, 300000)

	assert.Equal(t, 0.1, target.volume["HDFC"])
	assert.Equal(t, 0.1, target.success["HDFC"])
}

func TestController_ApplyIntervention_RerouteTraffic(t *testing.T) {
	target := newFakeTarget()
	c := New(target, nil)

	opt := decision.InterventionOption{Kind: decision.KindRerouteTraffic, Target: "UPI"}
	c.ApplyIntervention("i1", opt, 0, 300000)

	assert.Equal(t, 0.3, target.volume["UPI"])
}

func TestController_ApplyIntervention_ReduceRetryAttempts(t *testing.T) {
	target := newFakeTarget()
	c := New(target, nil)

	opt := decision.InterventionOption{Kind: decision.KindReduceRetryAttempts, Target: "global"}
	c.ApplyIntervention("i1", opt, 0, 600000)

	assert.Equal(t, 0.5, target.retry)
}

func TestController_Update_ExpiresPastEndTime(t *testing.T) {
	target := newFakeTarget()
	c := New(target, nil)
	c.ApplyIntervention("i1", decision.InterventionOption{Kind: decision.KindSuppressPath, Target: "HDFC"}, 0, 1000)

	expired := c.Update(500)
	assert.Empty(t, expired)
	assert.Len(t, c.Active(), 1)

	expired = c.Update(1500)
	require.Len(t, expired, 1)
	assert.Equal(t, "i1", expired[0].ID)
	assert.Empty(t, c.Active())
	// multiplier re-derivation after expiry clears the suppression override.
	_, present := target.volume["HDFC"]
	assert.False(t, present)
}

func TestController_RederivesFromScratchWithMultipleActive(t *testing.T) {
	target := newFakeTarget()
	c := New(target, nil)
	c.ApplyIntervention("i1", decision.InterventionOption{Kind: decision.KindSuppressPath, Target: "HDFC"}, 0, 600000)
	c.ApplyIntervention("i2", decision.InterventionOption{Kind: decision.KindReduceRetryAttempts, Target: "global"}, 0, 600000)

	assert.Equal(t, 0.1, target.volume["HDFC"])
	assert.Equal(t, 0.5, target.retry)
	assert.Len(t, c.Active(), 2)
}

func TestController_ClearAllResetsEverything(t *testing.T) {
	target := newFakeTarget()
	c := New(target, nil)
	c.ApplyIntervention("i1", decision.InterventionOption{Kind: decision.KindSuppressPath, Target: "HDFC"}, 0, 600000)

	c.ClearAll()
	assert.Empty(t, c.Active())
	assert.Equal(t, 1.0, target.retry)
}
