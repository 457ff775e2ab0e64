/*Package interval defines the coordinate model shared by the indexing and
  reading packages: a genomic interval is a (chromosome, start, end) triple
  with zero-based, half-open [start, end) semantics.

  Record types for individual file formats carry their own payload and
  implement the Interval interface; code that only needs coordinates should
  accept an Interval.
*/
package interval
