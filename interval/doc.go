/*Package interval loads genomic region catalogs from BED files and provides
  interval-union operations over them.
  Regions are kept in file order and are never merged; BEDUnion is the merged
  view used when only set membership matters (e.g. pre-filtering a depth
  report down to the positions some region covers).
  It assumes every position fits in a PosType, which is currently defined as
  int32 since that's what BAM files are limited to.
*/
package interval
