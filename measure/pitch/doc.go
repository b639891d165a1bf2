// Package pitch estimates the fundamental frequency of a monophonic signal
// in real time, for tuner-style displays.
//
// The pipeline runs inline on the audio path:
//
//	block -> Gate -> Accumulator -> Autocorrelator -> PickPeaks -> Selector
//
// Gate measures block loudness in dBFS and drops blocks below the noise
// floor. Accumulator collects samples into overlapping analysis windows.
// Autocorrelator computes the autocorrelation of each window through an FFT
// (Wiener-Khinchin), optionally normalized into the McLeod NSDF. PickPeaks
// finds the key maxima between zero crossings, and Selector picks the
// lowest-lag key maximum within a proportion of the highest one.
//
// Tuner wires the stages together. All buffers are sized at construction so
// that steady-state processing does not allocate. The latest estimate and
// loudness are published through atomics and can be polled from another
// goroutine, such as a UI refresh timer, without locks.
package pitch
