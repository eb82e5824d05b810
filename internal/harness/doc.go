// Package harness runs declarative feed scenarios against a social.App.
//
// A scenario is a YAML file with canned server responses, a list of client
// steps, and assertions over the resulting action trace and final state:
//
//	name: add-post
//	description: creating a post shows and then dismisses a notification
//	responses:
//	  - method: POST
//	    path: /fakeApi/posts
//	    body: {id: p1, title: Hi, content: Body, user: ann, date: "2024-05-01T12:00:00Z"}
//	steps:
//	  - do: addNewPost
//	    args: {title: Hi, content: Body, user: ann}
//	    expect: {phase: fulfilled}
//	assertions:
//	  - type: trace_order
//	    actions: [posts/addNewPost/fulfilled, notifications/shown, notifications/dismissed]
//
// Runs are deterministic: request ids and flow tokens come from sequence
// generators and the harness waits for listener effects after every step.
// The trace and a state fingerprint can be compared against golden files.
package harness
