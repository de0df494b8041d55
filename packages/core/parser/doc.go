// Package parser loads reqflow suite files.
//
// A suite is a YAML document describing a base URL, variables and an ordered
// list of checks. Each check is one HTTP or GraphQL exchange with captures
// and an expect block:
//
//	name: users
//	baseUrl: "{{baseUrl}}"
//	variables:
//	  baseUrl: http://localhost:8080
//	checks:
//	  - name: create user
//	    method: POST
//	    path: /users
//	    json: {name: ada}
//	    capture:
//	      userId: body:id
//	    expect:
//	      status: 201
//	      body:
//	        id: {type: number}
//	        name: ada
//
// Matchers under expect are either a literal (structural equality) or a
// mapping of operators such as contains, gt, matches, anyOf or not. Several
// operators in one mapping must all pass.
package parser
