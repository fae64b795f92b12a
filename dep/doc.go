/*

Public content type information.

This sub-package contains the types needed to implement a content source for
the page: the subscription plan record and the Provider interface the
generator reads from. The concrete sources (Postgres, Consul KV, local
catalog files) live in an internal/ package.

*/
package dep
