/*
Package srv4 implements the ASCII line protocol of Student Robotics v4 boards.

Each request is one command line. The board answers with exactly one line:

	ACK             the command was executed
	NACK:<message>  the command was rejected
	<data>          the answer to a query, a command ending in '?'

A Protocol boots in two steps. It first waits for the boot banner and reads the
version line that follows it (or, with WithIdentityVersion, asks the board for its
identity instead), then checks the version against the configured Requirement. Only a
Ready protocol accepts requests.

A failure of the underlying transport moves the protocol to Faulted for good; every
later request fails immediately. A NACK never faults the protocol.
*/
package srv4
