// Package browser owns the headless-browser session pool.
//
// One Engine (a Chrome process under chromedp) backs a fixed set of Session
// tabs. Acquire hands out free sessions immediately and queues callers in
// strict FIFO order otherwise; Release resets the tab and either hands it to
// the head waiter or returns it to the free list. Broken tabs are disposed
// and replaced on release, and a background health check restarts the whole
// browser when the process disconnects, preserving queued waiters across the
// restart.
//
// The pool is the only owner of the browser process. All bookkeeping happens
// under a single mutex; the initializing and restarting flags keep recovery
// sequences from overlapping.
package browser
