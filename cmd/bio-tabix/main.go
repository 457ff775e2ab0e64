/*Command bio-tabix builds and queries binned indexes of sorted BED,
  bedGraph and GeneTrack files.

  Usage:
    bio-tabix index foo.bed
    bio-tabix query foo.bed chr1:10001-20000 chr2
    bio-tabix dump foo.bed
    bio-tabix stats foo.bed chr1
    bio-tabix count foo.bed
*/
package main

func main() {
	Run()
}
