// Package commands defines the mrtd CLI.
//
// Commands
//
//   - read    Read one elementary file over secure messaging
//   - dump    Read EF.COM and every data group it lists
//   - com     Decode an EF.COM dump
//   - image   Extract the facial image from an EF.DG2 dump
//
// # Session material
//
// read and dump need an established BAC session: the session keys KSenc and
// KSmac and the current send sequence counter, all in hex. The counter printed
// at the end of a run is the value to pass to the next one.
package commands
