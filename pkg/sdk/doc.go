// Package stacfed provides a Go client for the stacfed federated collection
// search service.
//
// The Client wraps the HTTP API one request at a time. A Session layers the
// browsing state on top of it: the active set of upstream catalogs, the
// capabilities advertised by their conformance documents, the latest page of
// results after per-source filtering, and the warnings collected along the way.
//
// # Low-level API
//
//	client, _ := stacfed.New("http://localhost:8080", stacfed.WithAPIKey(key))
//	page, _ := client.Search(ctx, stacfed.SearchParams{Q: "sentinel", Limit: 10})
//	for page.Next != "" {
//	    page, _ = client.NextPage(ctx, page.Next)
//	}
//
// # Session API
//
//	sess, _ := stacfed.NewSession(ctx, client)
//	sess.Refresh(ctx)
//	if err := sess.Search(ctx, stacfed.SearchParams{BBox: &bbox}); err != nil {
//	    // blocking: results were cleared
//	}
//	for _, rec := range sess.Results() {
//	    d := stacfed.Details(rec)
//	    fmt.Println(rec.Title(), d.Temporal)
//	}
//	fmt.Println(sess.Warnings())
package stacfed
