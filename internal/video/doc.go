// Package video owns the Video status state machine.
//
// Machine validates an event against the transition table and its guard and
// mutates the in-memory record only when both hold. Service layers the
// review actions (submit, approve, reject, deliver) on top of the entity
// store so every status change goes through the same table.
package video
