// Package compute runs the reactive update protocol on top of pkg/stance.
//
// Engine owns the single State record and the class list that mirrors it.
// Start performs the first synchronous network pass, then acquires the
// battery in the background; every change event afterwards re-normalizes
// only the channel that fired and re-runs the full fusion from the whole
// record. Passes are serialized by a mutex, so readers calling Snapshot or
// Classes never see an intermediate state.
//
// A channel whose source is nil, or whose battery acquisition fails, simply
// never initializes. Fusion then treats it as unknown (moderate / neutral);
// nothing is returned or panicked to the caller.
package compute
