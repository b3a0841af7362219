// Package viz renders poresim output in the terminal.
//
//   - [Progress]: a Bubble Tea model showing a run live, fed by
//     [ProgramObserver]
//   - [Plot], [PlotFluids]: asciigraph charts of convergence and schedules
//   - [Table], [Field], [Panel]: lipgloss layout for CLI reports
//
// Colors come from the current [Theme]; see [SetTheme].
//
// # Key Bindings
//
//	q - leave the live view
package viz
