package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danpilch/tripdesk/internal/catalog"
)

func testCatalog() *catalog.Catalog {
	return catalog.New(catalog.KindTrain, "https://example.com/list", []catalog.Offering{
		{
			Identifier:       "12345",
			Name:             "Express",
			Departure:        "10:00",
			Arrival:          "14:30",
			Duration:         "4h 30m",
			Price:            "₹450",
			AvailableClasses: []catalog.FareClass{catalog.ClassThirdAC, catalog.ClassSecondAC},
		},
		{
			Identifier:       "22222",
			Name:             "Shatabdi",
			Departure:        "06:00",
			Arrival:          "11:45",
			Price:            "₹1,250",
			AvailableClasses: []catalog.FareClass{catalog.ClassChairCar, catalog.ClassExecutiveChair},
		},
	})
}

func newSelector() *Selector {
	return NewSelector(testCatalog(), catalog.DefaultClasses)
}

func TestChooseClassBeforeOffering(t *testing.T) {
	s := newSelector()
	err := s.ChooseClass("2A")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, StateEmpty, s.State())
}

func TestChooseOfferingOutOfRange(t *testing.T) {
	s := newSelector()
	_, err := s.ChooseOffering(7)
	assert.ErrorIs(t, err, catalog.ErrOutOfRange)
	assert.Contains(t, err.Error(), "[0,1]")
	assert.Equal(t, StateEmpty, s.State())
}

func TestChooseClassUnavailable(t *testing.T) {
	s := newSelector()
	_, err := s.ChooseOffering(0)
	require.NoError(t, err)

	err = s.ChooseClass("9Z")
	assert.ErrorIs(t, err, ErrClassUnavailable)
	assert.Contains(t, err.Error(), "3A, 2A")
	assert.Equal(t, StateTrainChosen, s.State())
}

func TestChooseClassOutsideAllowList(t *testing.T) {
	s := newSelector()
	_, err := s.ChooseOffering(1)
	require.NoError(t, err)

	err = s.ChooseClass("cc")
	assert.ErrorIs(t, err, ErrClassUnavailable)
	assert.Contains(t, err.Error(), "SL, 3A, 2A, 1A")

	permissive := NewSelector(testCatalog(), catalog.RecognizedClasses)
	_, err = permissive.ChooseOffering(1)
	require.NoError(t, err)
	assert.NoError(t, permissive.ChooseClass("cc"))
}

func TestFullSequence(t *testing.T) {
	s := newSelector()

	_, err := s.Summarize()
	assert.ErrorIs(t, err, ErrInvalidState)

	o, err := s.ChooseOffering(0)
	require.NoError(t, err)
	assert.Equal(t, "12345", o.Identifier)
	assert.Equal(t, StateTrainChosen, s.State())

	_, err = s.Summarize()
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, s.ChooseClass(" 2a"))
	assert.Equal(t, StateClassChosen, s.State())

	snap, err := s.Summarize()
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, s.State())
	assert.Equal(t, "10:00", snap.Departure)
	assert.Equal(t, "14:30", snap.Arrival)
	assert.Equal(t, "₹450", snap.Price)
	assert.Equal(t, catalog.ClassSecondAC, snap.Class)
	assert.Equal(t, "2nd AC", snap.ClassLabel)
	assert.Contains(t, snap.Format(), "Coach: 2nd AC (2A)")

	again, err := s.Summarize()
	require.NoError(t, err)
	assert.Equal(t, snap, again)
}

func TestConfirmedSelectionIsImmutable(t *testing.T) {
	s := newSelector()
	_, err := s.ChooseOffering(0)
	require.NoError(t, err)
	require.NoError(t, s.ChooseClass("3A"))
	snap, err := s.Summarize()
	require.NoError(t, err)

	_, err = s.ChooseOffering(1)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, s.ChooseClass("2A"), ErrInvalidState)

	again, err := s.Summarize()
	require.NoError(t, err)
	assert.Equal(t, snap, again)
}

func TestReselectOfferingClearsClass(t *testing.T) {
	s := newSelector()
	_, err := s.ChooseOffering(0)
	require.NoError(t, err)
	require.NoError(t, s.ChooseClass("3A"))

	_, err = s.ChooseOffering(0)
	require.NoError(t, err)
	assert.Equal(t, StateTrainChosen, s.State())
	_, err = s.Summarize()
	assert.ErrorIs(t, err, ErrInvalidState)
}
