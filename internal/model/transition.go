package model

// ActionKind distinguishes how an action is carried out.
type ActionKind string

const (
	// ActionStatus patches the appointment status directly.
	ActionStatus ActionKind = "status"
	// ActionCancel opens the cancel confirmation prompt first.
	ActionCancel ActionKind = "cancel"
	// ActionReschedule navigates to the reschedule view.
	ActionReschedule ActionKind = "reschedule"
)

// Action is one button offered on an appointment card.
type Action struct {
	Kind  ActionKind
	Label string
	To    AppointmentStatus
}

type transitionKey struct {
	role Role
	from AppointmentStatus
}

var (
	confirmAction   = Action{Kind: ActionStatus, Label: "Confirm", To: AppointmentStatusConfirmed}
	ongoingAction   = Action{Kind: ActionStatus, Label: "Mark as Ongoing", To: AppointmentStatusOngoing}
	completeAction  = Action{Kind: ActionStatus, Label: "Mark as Completed", To: AppointmentStatusCompleted}
	cancelAction    = Action{Kind: ActionCancel, Label: "Cancel", To: AppointmentStatusCancelled}
	rescheduleNavTo = Action{Kind: ActionReschedule, Label: "Reschedule"}
)

// transitions is the single source for which buttons render and which status
// patches may be sent. The server stays authoritative.
var transitions = map[transitionKey][]Action{
	{RoleDoctor, AppointmentStatusPending}:      {confirmAction, cancelAction},
	{RoleDoctor, AppointmentStatusConfirmed}:    {ongoingAction, completeAction, cancelAction},
	{RoleDoctor, AppointmentStatusOngoing}:      {completeAction},
	{RoleDoctor, AppointmentStatusRescheduled}:  {confirmAction, cancelAction},
	{RolePatient, AppointmentStatusPending}:     {cancelAction},
	{RolePatient, AppointmentStatusRescheduled}: {cancelAction},
	{RolePatient, AppointmentStatusMissed}:      {rescheduleNavTo},
}

// Actions returns the actions offered to role for an appointment in status
// from. Unknown pairs and terminal statuses yield none.
func Actions(role Role, from AppointmentStatus) []Action {
	actions := transitions[transitionKey{role, from}]
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

// CanTransition reports whether role may move an appointment from one status
// to another through a status patch.
func CanTransition(role Role, from, to AppointmentStatus) bool {
	for _, a := range transitions[transitionKey{role, from}] {
		if a.Kind != ActionReschedule && a.To == to {
			return true
		}
	}
	return false
}

// RequiresConfirmation reports whether a transition to status must pass
// through the confirmation prompt.
func RequiresConfirmation(to AppointmentStatus) bool {
	return to == AppointmentStatusCancelled
}
