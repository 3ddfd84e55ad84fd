// Command phieu drives the retrieval-and-assembly pipeline: it logs in to
// AMIS, resolves a record, fetches the print template and its images, and
// assembles the signed survey document.
package main
