// Package attribution decides which promoter, if any, earned a conversion.
//
// The model is single-click: a conversion names exactly one click session,
// and it is credited to that click's promoter when the click exists and
// happened inside the attribution window. Anything else is a miss, which
// is a normal outcome and not an error. Resolution reads only immutable
// events, so running it any number of times gives the same answer.
package attribution
