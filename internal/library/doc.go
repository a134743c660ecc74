// Package library is the public operation surface over an encrypted DJ
// library file.
//
// A Library is a shared handle: every method is safe to call from many
// goroutines, and several processes may open the same file at once.
// Synchronized mutations (tagging, playlist creation and membership) are
// stamped with a value drawn from the library's change counter inside the
// same write transaction as the row they stamp. Re-adding an existing
// association or membership writes nothing and leaves the counter alone.
//
// Typical use:
//
//	lib, err := library.Open(ctx, path, passphrase)
//	if err != nil {
//		return err
//	}
//	defer lib.Close()
//
//	track, err := lib.FindByFilename(ctx, "glue")
//	if err != nil {
//		return err
//	}
//	usn, inserted, err := lib.Tag(ctx, track, "eatmos")
//
// Errors carry a store.ErrorCode; test them with store.IsNotFound and the
// other store.Is* helpers.
package library
