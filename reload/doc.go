// Package reload publishes database generations without interrupting
// query traffic. The publisher swaps an atomic pointer, so readers
// never block; superseded generations stay alive until their last
// in-flight query releases them. The watcher drives the publisher from
// generation files appearing on disk.
package reload
