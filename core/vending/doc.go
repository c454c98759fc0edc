// Package vending implements the vending machine controller.
//
// The controller owns a two state machine (idle, vending). A vend command is
// accepted only while idle; acceptance acknowledges the requester, broadcasts
// the new state to every observer and schedules the completion timer. When
// the timer fires the machine returns to idle and the completion is
// broadcast. Every command and the timer callback run under one mutex.
package vending
