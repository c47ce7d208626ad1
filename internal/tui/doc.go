// Package tui implements the interactive watch dashboard.
//
// The dashboard subscribes to a coordinator and redraws the entity list
// after every refresh cycle. Commands go to the entity under the cursor:
//
//	enter  toggle a switch
//	H C O  heat, cool or off for a climate
//	+ -    move a climate setpoint or a number by one step
//	f      next fan mode
//	r      refresh now
//
// Commands run in the background; a spinner shows while one is in flight
// and further commands are ignored until it finishes.
package tui
