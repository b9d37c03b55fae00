package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/ticket"
)

func TestTicketLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	cole := h.addUser(domain.RoleCoordinator, "Cole")
	coleActor := domain.Actor{UserID: cole.ID, Role: cole.Role}
	pat, patActor := h.addPatient(t, "Alice")

	tk, err := h.ticketSvc.Create(ctx, patActor, &ticket.CreateTicketCommand{
		Title: "  Missed visit  ",
		Team:  domain.RoleCoordinator,
	})
	require.NoError(t, err)
	assert.Equal(t, "Missed visit", tk.Title)
	assert.Equal(t, ticket.StatusOpen, tk.Status)
	assert.Equal(t, ticket.PriorityMedium, tk.Priority)

	notes := h.notifications.Notifications(h.coordinator.UserID)
	require.Len(t, notes, 1)
	assert.Equal(t, notification.TypeTicketNew, notes[0].Type)
	assert.Len(t, h.notifications.Notifications(cole.ID), 1)
	assert.Empty(t, h.notifications.Notifications(h.admin.UserID), "other teams are not alerted")
	assert.Empty(t, h.notifications.Notifications(pat.UserID))

	// Administrators are not members of the coordinator team.
	_, err = h.ticketSvc.Assign(ctx, h.coordinator, tk.ID, h.admin.UserID)
	assert.ErrorIs(t, err, ticket.ErrAssigneeNotInTeam)
	_, err = h.ticketSvc.Assign(ctx, patActor, tk.ID, cole.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	tk, err = h.ticketSvc.Assign(ctx, h.coordinator, tk.ID, cole.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.StatusInProgress, tk.Status)
	assert.Len(t, h.notifications.Notifications(pat.UserID), 1)
	assert.Len(t, h.notifications.Notifications(cole.ID), 2)

	_, err = h.ticketSvc.AddComment(ctx, patActor, tk.ID, "   ")
	assert.ErrorIs(t, err, ticket.ErrEmptyComment)

	// A comment by the creator reaches the whole team but not its author.
	_, err = h.ticketSvc.AddComment(ctx, patActor, tk.ID, "Nobody came on Tuesday")
	require.NoError(t, err)
	assert.Len(t, h.notifications.Notifications(h.coordinator.UserID), 2)
	assert.Len(t, h.notifications.Notifications(cole.ID), 3)
	assert.Len(t, h.notifications.Notifications(pat.UserID), 1)

	comments, err := h.ticketSvc.ListComments(ctx, patActor, tk.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)

	_, err = h.ticketSvc.UpdateStatus(ctx, patActor, tk.ID, ticket.StatusResolved)
	assert.ErrorIs(t, err, ErrForbidden)

	tk, err = h.ticketSvc.UpdateStatus(ctx, coleActor, tk.ID, ticket.StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, ticket.StatusResolved, tk.Status)
	assert.Len(t, h.notifications.Notifications(pat.UserID), 2)

	_, err = h.ticketSvc.UpdateStatus(ctx, coleActor, tk.ID, ticket.StatusClosed)
	require.NoError(t, err)
	_, err = h.ticketSvc.UpdateStatus(ctx, coleActor, tk.ID, ticket.StatusOpen)
	assert.ErrorIs(t, err, ticket.ErrInvalidStatusTransition)
}

func TestTicketCreate_Validation(t *testing.T) {
	h := newHarness(t)
	_, err := h.ticketSvc.Create(t.Context(), h.coordinator, &ticket.CreateTicketCommand{
		Team:     domain.RoleProvider,
		Priority: "Whenever",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 3)
	assert.Empty(t, h.tickets.All())
}

func TestTicketList_Scoping(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	_, alice := h.addPatient(t, "Alice")
	_, bob := h.addPatient(t, "Bob")

	_, err := h.ticketSvc.Create(ctx, alice, &ticket.CreateTicketCommand{Title: "Invoice question", Team: domain.RoleAdministrator})
	require.NoError(t, err)
	_, err = h.ticketSvc.Create(ctx, bob, &ticket.CreateTicketCommand{Title: "Change of nurse", Team: domain.RoleCoordinator})
	require.NoError(t, err)

	mine, total, err := h.ticketSvc.List(ctx, alice, ticket.ListQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "Invoice question", mine[0].Title)

	// Asking for another team's queue is ignored for patients.
	team := domain.RoleCoordinator
	mine, _, err = h.ticketSvc.List(ctx, alice, ticket.ListQuery{Team: &team})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Invoice question", mine[0].Title)

	queue, _, err := h.ticketSvc.List(ctx, h.coordinator, ticket.ListQuery{})
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "Change of nurse", queue[0].Title)

	all, _, err := h.ticketSvc.List(ctx, h.admin, ticket.ListQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	bad := ticket.Status("Pending")
	_, _, err = h.ticketSvc.List(ctx, h.admin, ticket.ListQuery{Status: &bad})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = h.ticketSvc.Get(ctx, bob, queue[0].ID)
	require.NoError(t, err)
	_, err = h.ticketSvc.Get(ctx, alice, queue[0].ID)
	assert.ErrorIs(t, err, ErrForbidden)
}
