// Package session tracks each user's tag editing conversation: which file is
// being edited, its current tags and which input the bot expects next.
//
// Invariants:
// - A user has at most one session and a session owns exactly one temp file.
// - Replacing, cancelling, finalizing or evicting a session deletes its file.
// - State changes go through State.CanTransition; rejected inputs leave the
//   session untouched.
// - EditingTag is entered only from SelectingTag and only returns there.
// - A failed upload never leaves a session behind.
//
// Usage:
//
//	ctrl, _ := session.NewController(session.NewStore(), session.Options{})
//	defer ctrl.Close()
//	_, _ = ctrl.Create(ctx, userID, "song.mp3", body)
//	_, _ = ctrl.SelectTag(userID, tags.FieldArtist)
//	_, _ = ctrl.ApplyTagValue(userID, "The Beatles")
//	_ = ctrl.Finalize(ctx, userID, deliver)
package session
