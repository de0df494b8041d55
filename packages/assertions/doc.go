// Package assertions provides composable predicates for reqflow.
//
// A Predicate is evaluated against a single value extracted from a response
// (a body path, a header, a cookie) and reports a Result instead of a bool.
//
// Supported predicates:
//   - Equality (Equals, NotEquals), structural for maps and slices
//   - Containment (Contains for needles, MemberOf for collections)
//   - Ordering (GreaterThan, LessThan, GreaterOrEqual, LessOrEqual)
//   - Existence (IsNull, IsNotNull)
//   - Text (Matches anchored at the start, StartsWith, EndsWith)
//   - Shape (HasLength, IsType, MatchesSchema)
//
// Predicates compose with AllOf, AnyOf and Not without being executed until
// they are applied.
package assertions
