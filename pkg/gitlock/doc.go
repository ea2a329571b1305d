// Package gitlock is the library API for advisory file locking on top of
// git lfs.
//
// A Client owns everything for one working tree: the serialized command
// queue, the repository roots (main repository plus submodules), the lock
// snapshot and its persistence. Nothing is global, so several clients for
// different working trees can live in one process.
//
// # Driving a Client
//
// Intents return immediately. Their results are folded into the snapshot by
// Tick, which a long-running host calls from Run:
//
//	client, err := gitlock.Open(ctx, gitlock.Options{Dir: "."})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//	go client.Run(ctx)
//
//	client.Acquire("Assets/hero.png")
//	state := client.LockStateOf("Assets/hero.png")
//
// Short-lived callers such as the CLI use the blocking helpers instead
// (AcquireWait, ReleaseWait, Sync).
package gitlock
