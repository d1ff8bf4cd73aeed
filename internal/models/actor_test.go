package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActorRoles(t *testing.T) {
	student := Actor{ID: 1, Role: RoleStudent}
	assert.True(t, student.IsStudent())
	assert.False(t, student.IsFaculty())
	assert.False(t, student.IsAdmin())

	faculty := Actor{ID: 2, Role: RoleFaculty}
	assert.True(t, faculty.IsFaculty())
	assert.False(t, faculty.IsAdmin())

	admin := Actor{ID: 3, Role: RoleAdmin}
	assert.True(t, admin.IsAdmin())
	assert.False(t, admin.IsStudent())
}

func TestReservationActive(t *testing.T) {
	res := Reservation{Status: StatusConfirmed}
	assert.True(t, res.Active())

	res.Status = StatusCancelled
	assert.False(t, res.Active())
}

func TestSlotDuration(t *testing.T) {
	assert.Equal(t, 15*time.Minute, SlotDuration)
}
